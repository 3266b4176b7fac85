package envelope

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is the closed set of payloads an Envelope can decode into:
// PublishRequest or Unknown.
type Message interface {
	isMessage()
}

// PublishRequest is the payload of TypePublishRequest envelopes.
type PublishRequest struct {
	Data     string
	Metadata string
}

// Unknown is returned for envelopes whose MessageType is not recognized.
// Callers drop these; they are not an error.
type Unknown struct {
	Type string
}

func (PublishRequest) isMessage() {}
func (Unknown) isMessage()        {}

func (PublishRequest) MessageType() string { return TypePublishRequest }

func (p PublishRequest) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, p.Data)
	b = appendString(b, 2, p.Metadata)
	return b
}

func unmarshalPublishRequest(b []byte) (PublishRequest, error) {
	var p PublishRequest
	err := walk(b, 2, func(num protowire.Number, v []byte) error {
		switch num {
		case 1:
			return setString(&p.Data, "data", v)
		case 2:
			return setString(&p.Metadata, "metadata", v)
		}
		return nil
	})
	return p, err
}

// Decode resolves the envelope's payload into its typed variant. An
// unrecognized MessageType yields Unknown with a nil error; a recognized type
// whose payload does not decode yields an error wrapping ErrPayload.
func Decode(e Envelope) (Message, error) {
	switch e.MessageType {
	case TypePublishRequest:
		p, err := unmarshalPublishRequest(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrPayload, e.MessageType, err)
		}
		return p, nil
	default:
		return Unknown{Type: e.MessageType}, nil
	}
}
