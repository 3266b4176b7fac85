// Package api is the HTTP front door of the pipeline: it publishes greetings
// and envelopes to Kafka and reads back what the consumer persisted.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/k1networth/hello-pipeline/internal/envelope"
	"github.com/k1networth/hello-pipeline/internal/shared/httpx"
	"github.com/k1networth/hello-pipeline/internal/shared/jsoncodec"
	"github.com/k1networth/hello-pipeline/internal/shared/requestid"
	"github.com/k1networth/hello-pipeline/internal/store"
)

const (
	maxBodyBytes = 1 << 20
	maxListLimit = 1000

	headerRequestID = "x-request-id"
)

// Publisher writes one record to a fixed topic.
type Publisher interface {
	Produce(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// Reader is the read side of the store.
type Reader interface {
	ListMessages(ctx context.Context, topic string, limit int) ([]store.Message, error)
	ListPublished(ctx context.Context, filter string, limit int) ([]store.PublishedData, error)
}

type Handler struct {
	Log *slog.Logger

	// Greetings targets the default topic, Published the publish topic.
	Greetings Publisher
	Published Publisher
	Reader    Reader

	// DefaultTopic is used by ListMessages when no topic is given.
	DefaultTopic string

	Now    func() time.Time
	NewKey func() string
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.Handle("POST /hello", httpx.WithRoute("/hello", http.HandlerFunc(h.SayHello)))
	mux.Handle("POST /publish", httpx.WithRoute("/publish", http.HandlerFunc(h.Publish)))
	mux.Handle("GET /messages", httpx.WithRoute("/messages", http.HandlerFunc(h.ListMessages)))
	mux.Handle("GET /publishes", httpx.WithRoute("/publishes", http.HandlerFunc(h.ListPublished)))
}

// SayHello publishes "Hello <name>" keyed by name to the default topic.
func (h *Handler) SayHello(w http.ResponseWriter, r *http.Request) {
	var req HelloRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	err := h.Greetings.Produce(r.Context(), []byte(name), []byte("Hello "+name), h.headers(r)...)
	if err != nil {
		h.Log.Error("hello_publish_failed",
			slog.String("request_id", requestid.Get(r.Context())),
			slog.String("err", err.Error()),
		)
		WriteError(w, r, http.StatusBadGateway, "publish_failed", "failed to send message")
		return
	}

	h.Log.Info("hello_published", slog.String("request_id", requestid.Get(r.Context())), slog.String("name", name))
	writeJSON(w, http.StatusOK, HelloResponse{Message: "Hello " + name + "!"})
}

// Publish wraps the request in an envelope and sends it to the publish topic
// under a fresh UUID key.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Data == "" {
		writeJSON(w, http.StatusOK, PublishResponse{Success: false, Message: msgDataRequired})
		return
	}

	env := envelope.Wrap(envelope.PublishRequest{Data: req.Data, Metadata: req.Metadata}, h.now())
	key := h.newKey()

	if err := h.Published.Produce(r.Context(), []byte(key), envelope.Marshal(env), h.headers(r)...); err != nil {
		h.Log.Error("publish_failed",
			slog.String("request_id", requestid.Get(r.Context())),
			slog.String("key", key),
			slog.String("err", err.Error()),
		)
		writeJSON(w, http.StatusOK, PublishResponse{Success: false, Message: "Failed to publish data: " + err.Error()})
		return
	}

	h.Log.Info("data_published", slog.String("request_id", requestid.Get(r.Context())), slog.String("key", key))
	writeJSON(w, http.StatusOK, PublishResponse{Success: true, Message: msgPublishSucceeded, Key: key})
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	topic := strings.TrimSpace(r.URL.Query().Get("topic"))
	if topic == "" {
		topic = h.DefaultTopic
	}

	rows, err := h.Reader.ListMessages(r.Context(), topic, limit)
	if err != nil {
		h.Log.Error("messages_list_failed", slog.String("topic", topic), slog.String("err", err.Error()))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: messagesFromStore(rows)})
}

func (h *Handler) ListPublished(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	filter := r.URL.Query().Get("filter")

	rows, err := h.Reader.ListPublished(r.Context(), filter, limit)
	if err != nil {
		h.Log.Error("publishes_list_failed", slog.String("err", err.Error()))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, PublishesResponse{Publishes: publishedFromStore(rows)})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := jsoncodec.NewStrictDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		msg := "invalid json"
		if errors.Is(err, io.EOF) {
			msg = "empty body"
		}
		WriteError(w, r, http.StatusBadRequest, "validation_error", msg)
		return false
	}
	if dec.More() {
		WriteError(w, r, http.StatusBadRequest, "validation_error", "invalid json")
		return false
	}
	return true
}

func (h *Handler) headers(r *http.Request) []kafka.Header {
	rid := requestid.Get(r.Context())
	if rid == "" {
		return nil
	}
	return []kafka.Header{{Key: headerRequestID, Value: []byte(rid)}}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) newKey() string {
	if h.NewKey != nil {
		return h.NewKey()
	}
	return uuid.NewString()
}

// parseLimit reads ?limit=. Missing or non-positive means the store default.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "validation_error", "limit must be an integer")
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}
