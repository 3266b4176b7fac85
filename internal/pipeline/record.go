package pipeline

import (
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
)

// Stream names the subscription a record arrived on.
type Stream string

const (
	StreamDefault Stream = "default"
	StreamPublish Stream = "publish"
)

// Record is a broker record as seen by the pipeline. Its provenance fields are
// copied verbatim into every row it produces.
type Record struct {
	Topic     string
	Partition int
	Offset    int64
	Payload   []byte
}

func RecordFromMessage(m kafka.Message) Record {
	return Record{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Payload:   m.Value,
	}
}

// Text is the payload as UTF-8 with invalid sequences replaced.
func (r Record) Text() string {
	return strings.ToValidUTF8(string(r.Payload), "\uFFFD")
}

func (r Record) logAttrs() []any {
	return []any{
		slog.String("topic", r.Topic),
		slog.Int("partition", r.Partition),
		slog.Int64("offset", r.Offset),
	}
}
