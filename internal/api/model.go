package api

import (
	"strings"
	"time"

	"github.com/k1networth/hello-pipeline/internal/store"
)

const (
	msgDataRequired     = "Data field cannot be empty"
	msgPublishSucceeded = "Data published successfully"
)

type HelloRequest struct {
	Name string `json:"name"`
}

func (r HelloRequest) Validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return ValidationError("name is required")
	}
	if len(name) > 200 {
		return ValidationError("name must be at most 200 characters")
	}
	return nil
}

type HelloResponse struct {
	Message string `json:"message"`
}

type PublishRequest struct {
	Data     string `json:"data"`
	Metadata string `json:"metadata"`
}

// PublishResponse mirrors the RPC reply: validation and broker failures are
// reported in the body with success=false, not as HTTP errors.
type PublishResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
}

type Message struct {
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	Partition int       `json:"part"`
	Offset    int64     `json:"kafkaoffset"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

type Published struct {
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	Partition int       `json:"part"`
	Offset    int64     `json:"kafkaoffset"`
	Data      string    `json:"data"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

type PublishesResponse struct {
	Publishes []Published `json:"publishes"`
}

func messagesFromStore(rows []store.Message) []Message {
	out := make([]Message, 0, len(rows))
	for _, m := range rows {
		out = append(out, Message(m))
	}
	return out
}

// publishedFromStore maps NULL metadata to "".
func publishedFromStore(rows []store.PublishedData) []Published {
	out := make([]Published, 0, len(rows))
	for _, p := range rows {
		out = append(out, Published{
			ID:        p.ID,
			Topic:     p.Topic,
			Partition: p.Partition,
			Offset:    p.Offset,
			Data:      p.Data,
			Metadata:  p.Metadata.String,
			CreatedAt: p.CreatedAt,
		})
	}
	return out
}
