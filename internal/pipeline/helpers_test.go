package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/k1networth/hello-pipeline/internal/envelope"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// count returns how many log lines carry msg.
func (b *syncBuffer) count(msg string) int {
	return strings.Count(b.String(), `"msg":"`+msg+`"`)
}

func testLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	h := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h).With(
		slog.String("app", "test"),
		slog.String("env", "test"),
	), buf
}

type row struct {
	Topic     string
	Partition int
	Offset    int64
	Payload   string
	Data      string
	Metadata  string
}

// fakeStore fails the first failFirst calls, or every call when failAlways is set.
type fakeStore struct {
	mu         sync.Mutex
	failFirst  int
	failAlways bool
	calls      int
	messages   []row
	published  []row
}

var errStoreDown = errors.New("store down")

func (s *fakeStore) fail() bool {
	s.calls++
	return s.failAlways || s.calls <= s.failFirst
}

func (s *fakeStore) InsertMessage(_ context.Context, topic string, partition int, offset int64, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail() {
		return errStoreDown
	}
	s.messages = append(s.messages, row{Topic: topic, Partition: partition, Offset: offset, Payload: payload})
	return nil
}

func (s *fakeStore) InsertPublishedData(_ context.Context, topic string, partition int, offset int64, data, metadata string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail() {
		return errStoreDown
	}
	s.published = append(s.published, row{Topic: topic, Partition: partition, Offset: offset, Data: data, Metadata: metadata})
	return nil
}

func (s *fakeStore) snapshot() (calls int, messages, published []row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]row(nil), s.messages...), append([]row(nil), s.published...)
}

type fakeSource struct {
	msgs chan kafka.Message
	errs chan error

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{msgs: make(chan kafka.Message, 16), errs: make(chan error, 4)}
}

func (s *fakeSource) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-s.msgs:
		return m, nil
	case err := <-s.errs:
		return kafka.Message{}, err
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (s *fakeSource) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) state() (committed []int64, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...), s.closed
}

func publishEnvelope(t *testing.T, msgType string, p envelope.PublishRequest) []byte {
	t.Helper()
	env := envelope.Wrap(p, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	env.MessageType = msgType
	return envelope.Marshal(env)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
