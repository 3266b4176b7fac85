package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/k1networth/hello-pipeline/internal/envelope"
	"github.com/k1networth/hello-pipeline/internal/shared/jsoncodec"
)

const (
	tableMessages      = "messages"
	tablePublishedData = "published_data"
)

// ErrUnknownMessageType marks an envelope whose type is not recognized.
var ErrUnknownMessageType = errors.New("unknown message type")

// Persister is the subset of the store the pipeline writes through. Each call
// is one atomic single-row transaction.
type Persister interface {
	InsertMessage(ctx context.Context, topic string, partition int, offset int64, payload string) error
	InsertPublishedData(ctx context.Context, topic string, partition int, offset int64, data, metadata string) error
}

// IsPermanent reports whether err is a decode failure that will never succeed
// on retry. Store failures are not permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, envelope.ErrMalformed) ||
		errors.Is(err, envelope.ErrPayload) ||
		errors.Is(err, ErrUnknownMessageType)
}

// Greeting is the structured shape recognized on the default topic.
type Greeting struct {
	Name      string
	Timestamp string
}

type Handler struct {
	Store Persister
	// Log defaults to slog.Default().
	Log     *slog.Logger
	Policy  Policy
	Metrics *Metrics
}

// Handle routes rec to the path for the stream it came from. A nil error
// means a row was committed.
func (h *Handler) Handle(ctx context.Context, stream Stream, rec Record) error {
	switch stream {
	case StreamPublish:
		return h.HandlePublished(ctx, rec)
	default:
		return h.HandleGreeting(ctx, rec)
	}
}

// ClassifyGreeting parses payload as a Greeting. Both fields must be present;
// anything else is plain text. It never fails.
func ClassifyGreeting(payload []byte) (Greeting, bool) {
	var raw struct {
		Name      *string `json:"name"`
		Timestamp *string `json:"timestamp"`
	}
	if err := jsoncodec.Unmarshal(payload, &raw); err != nil {
		return Greeting{}, false
	}
	if raw.Name == nil || raw.Timestamp == nil {
		return Greeting{}, false
	}
	return Greeting{Name: *raw.Name, Timestamp: *raw.Timestamp}, true
}

// HandleGreeting logs the record as a greeting or as plain text, then stores
// the raw text in messages.
func (h *Handler) HandleGreeting(ctx context.Context, rec Record) error {
	text := rec.Text()
	if g, ok := ClassifyGreeting(rec.Payload); ok {
		h.logger().Info("greeting_received", append(rec.logAttrs(),
			slog.String("name", g.Name),
			slog.String("timestamp", g.Timestamp),
		)...)
	} else {
		h.logger().Info("plain_text_received", append(rec.logAttrs(), slog.String("payload", text))...)
	}

	return h.persist(ctx, tableMessages, rec, func(ctx context.Context) error {
		return h.Store.InsertMessage(ctx, rec.Topic, rec.Partition, rec.Offset, text)
	})
}

// HandlePublished decodes the envelope on rec and stores recognized payloads
// in published_data. Decode failures and unknown types are returned without
// touching the store.
func (h *Handler) HandlePublished(ctx context.Context, rec Record) error {
	env, err := envelope.Unmarshal(rec.Payload)
	if err != nil {
		h.logger().Error("envelope_decode_failed", append(rec.logAttrs(), slog.String("err", err.Error()))...)
		return err
	}

	msg, err := envelope.Decode(env)
	if err != nil {
		h.logger().Error("payload_decode_failed", append(rec.logAttrs(),
			slog.String("message_type", env.MessageType),
			slog.String("err", err.Error()),
		)...)
		return err
	}

	switch m := msg.(type) {
	case envelope.PublishRequest:
		h.logger().Info("publish_request_received", append(rec.logAttrs(),
			slog.String("version", env.Version),
			slog.String("sent_at", env.Timestamp),
		)...)
		return h.persist(ctx, tablePublishedData, rec, func(ctx context.Context) error {
			return h.Store.InsertPublishedData(ctx, rec.Topic, rec.Partition, rec.Offset, m.Data, m.Metadata)
		})
	case envelope.Unknown:
		h.logger().Warn("unknown_message_type", append(rec.logAttrs(),
			slog.String("message_type", m.Type),
			slog.String("expected", envelope.TypePublishRequest),
		)...)
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, m.Type)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownMessageType, msg)
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

func (h *Handler) persist(ctx context.Context, table string, rec Record, insert func(ctx context.Context) error) error {
	policy := h.Policy
	if policy.MaxAttempts == 0 {
		policy = DefaultPolicy
	}

	started := time.Now()
	err := Retry(ctx, policy, h.logger().With(slog.String("table", table)), rec, func(ctx context.Context) error {
		err := insert(ctx)
		h.Metrics.attempt(table, err)
		return err
	})
	if err != nil {
		return err
	}

	h.Metrics.persisted(table, started)
	h.logger().Info("record_persisted", append(rec.logAttrs(), slog.String("table", table))...)
	return nil
}
