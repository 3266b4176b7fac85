package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultTick          = 100 * time.Millisecond
	DefaultGrace         = 1 * time.Second
	defaultCommitTimeout = 5 * time.Second
	fetchErrorBackoff    = 300 * time.Millisecond
	reopenAfterFailures  = 5
)

// Source is one consumer-group subscription.
type Source interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type reopener interface {
	Reopen()
}

// CommitPolicy decides whether a handled record's offset is committed.
type CommitPolicy int

const (
	// CommitAfterHandle commits every handled record, including ones whose
	// persistence exhausted its retries. Those records are not redelivered.
	CommitAfterHandle CommitPolicy = iota
	// CommitOnSuccess skips the commit when persistence exhausted its retries.
	// Decode failures are still committed.
	CommitOnSuccess
)

func ParseCommitPolicy(s string) (CommitPolicy, error) {
	switch s {
	case "", "after_handle":
		return CommitAfterHandle, nil
	case "on_success":
		return CommitOnSuccess, nil
	default:
		return 0, fmt.Errorf("unknown commit policy %q", s)
	}
}

func (p CommitPolicy) shouldCommit(handleErr error) bool {
	if handleErr == nil || IsPermanent(handleErr) {
		return true
	}
	return p == CommitAfterHandle
}

// Worker multiplexes the default and publish subscriptions onto a single
// handling loop. At most one record is handled at a time.
type Worker struct {
	Default Source
	Publish Source
	Handler *Handler
	// Log defaults to slog.Default().
	Log     *slog.Logger
	Metrics *Metrics

	CommitPolicy CommitPolicy

	// Tick is how often cancellation is checked; Grace is slept after both
	// subscriptions are closed. Zero values use DefaultTick and DefaultGrace.
	Tick  time.Duration
	Grace time.Duration
}

type fetched struct {
	stream Stream
	src    Source
	msg    kafka.Message
	err    error
}

// Run handles records until ctx is cancelled. Cancellation is observed on the
// tick, so a record being handled (including its retries) always finishes.
// Both sources are closed before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	if w.Default == nil || w.Publish == nil || w.Handler == nil {
		return errors.New("pipeline: worker requires both sources and a handler")
	}
	tick := w.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	grace := w.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}

	pumpCtx, stopPumps := context.WithCancel(ctx)
	defer stopPumps()

	defaultCh := make(chan fetched)
	publishCh := make(chan fetched)

	var wg sync.WaitGroup
	wg.Add(2)
	go w.pump(pumpCtx, &wg, StreamDefault, w.Default, defaultCh)
	go w.pump(pumpCtx, &wg, StreamPublish, w.Publish, publishCh)

	// Handling must not be cut short by shutdown.
	work := context.WithoutCancel(ctx)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	w.logger().Info("consumer_loop_start")

	for {
		select {
		case f := <-defaultCh:
			w.dispatch(ctx, work, f)
		case f := <-publishCh:
			w.dispatch(ctx, work, f)
		case <-ticker.C:
			if ctx.Err() == nil {
				continue
			}
			w.logger().Info("consumer_shutdown")
			stopPumps()
			wg.Wait()
			w.close(StreamDefault, w.Default)
			w.close(StreamPublish, w.Publish)
			time.Sleep(grace)
			w.logger().Info("consumer_stopped")
			return nil
		}
	}
}

func (w *Worker) logger() *slog.Logger {
	if w.Log != nil {
		return w.Log
	}
	return slog.Default()
}

// dispatch handles f unless shutdown has begun. A record left unhandled is
// also left uncommitted, so the group redelivers it.
func (w *Worker) dispatch(ctx, work context.Context, f fetched) {
	if ctx.Err() != nil {
		if f.err == nil {
			w.logger().Info("record_left_for_redelivery", RecordFromMessage(f.msg).logAttrs()...)
		}
		return
	}
	w.handle(work, f)
}

func (w *Worker) handle(ctx context.Context, f fetched) {
	if f.err != nil {
		w.Metrics.fetchError(f.stream)
		w.logger().Error("kafka_fetch_failed", slog.String("stream", string(f.stream)), slog.String("err", f.err.Error()))
		return
	}

	rec := RecordFromMessage(f.msg)
	err := w.Handler.Handle(ctx, f.stream, rec)

	switch {
	case err == nil:
		w.Metrics.record(f.stream, outcomePersisted)
	case IsPermanent(err):
		w.Metrics.record(f.stream, outcomeDropped)
	default:
		w.Metrics.record(f.stream, outcomeFailed)
	}

	if !w.CommitPolicy.shouldCommit(err) {
		w.logger().Warn("commit_skipped", append(rec.logAttrs(), slog.String("stream", string(f.stream)))...)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, defaultCommitTimeout)
	defer cancel()
	if err := f.src.CommitMessages(cctx, f.msg); err != nil {
		w.Metrics.commitError(f.stream)
		w.logger().Error("kafka_commit_failed", append(rec.logAttrs(), slog.String("err", err.Error()))...)
	}
}

// pump fetches from src and hands each result to out. It blocks on out until
// the loop takes the record, so at most one record per source is in hand.
func (w *Worker) pump(ctx context.Context, wg *sync.WaitGroup, stream Stream, src Source, out chan<- fetched) {
	defer wg.Done()

	failures := 0
	for {
		msg, err := src.FetchMessage(ctx)
		if ctx.Err() != nil {
			return
		}

		f := fetched{stream: stream, src: src, msg: msg, err: err}
		select {
		case out <- f:
		case <-ctx.Done():
			return
		}

		if err == nil {
			failures = 0
			continue
		}

		// out is unbuffered and the loop commits a record before its next
		// receive, so no record from src is waiting on a commit here.
		failures++
		if r, ok := src.(reopener); ok && failures >= reopenAfterFailures {
			w.logger().Warn("kafka_reader_reopen", slog.String("stream", string(stream)), slog.Int("failures", failures))
			r.Reopen()
			failures = 0
		}
		if sleep(ctx, fetchErrorBackoff) != nil {
			return
		}
	}
}

func (w *Worker) close(stream Stream, src Source) {
	if err := src.Close(); err != nil {
		w.logger().Error("kafka_close_failed", slog.String("stream", string(stream)), slog.String("err", err.Error()))
	}
}
