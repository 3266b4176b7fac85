// Package envelope implements the two-level wire format carried on the
// publish topic: an outer Envelope whose opaque payload holds a message
// identified by MessageType.
//
// Both levels are protobuf encoded. Field numbers:
//
//	Envelope       payload=1 message_type=2 timestamp=3 version=4 headers=5 (map<string,string>)
//	PublishRequest data=1 metadata=2
package envelope

import (
	"errors"
	"time"
)

const (
	// TypePublishRequest is the only message type the pipeline persists.
	TypePublishRequest = "hello.PublishRequest"

	// CurrentVersion is stamped by Wrap.
	CurrentVersion = "1.0"
)

var (
	// ErrMalformed marks bytes that do not decode as an Envelope.
	ErrMalformed = errors.New("envelope: malformed")
	// ErrPayload marks an envelope whose inner payload does not decode as its declared type.
	ErrPayload = errors.New("envelope: malformed payload")
)

type Envelope struct {
	Payload     []byte
	MessageType string
	Timestamp   string
	Version     string
	Headers     map[string]string
}

// Typed is a message that can be carried inside an Envelope.
type Typed interface {
	MessageType() string
	Marshal() []byte
}

// Wrap builds the envelope a producer sends for msg.
func Wrap(msg Typed, now time.Time) Envelope {
	return Envelope{
		Payload:     msg.Marshal(),
		MessageType: msg.MessageType(),
		Timestamp:   now.UTC().Format(time.RFC3339Nano),
		Version:     CurrentVersion,
		Headers:     map[string]string{},
	}
}
