package envelope

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldPayload     protowire.Number = 1
	fieldMessageType protowire.Number = 2
	fieldTimestamp   protowire.Number = 3
	fieldVersion     protowire.Number = 4
	fieldHeaders     protowire.Number = 5

	fieldMapKey   protowire.Number = 1
	fieldMapValue protowire.Number = 2
)

// Marshal encodes e. Header entries are written in key order so the output is deterministic.
func Marshal(e Envelope) []byte {
	var b []byte
	b = appendBytes(b, fieldPayload, e.Payload)
	b = appendString(b, fieldMessageType, e.MessageType)
	b = appendString(b, fieldTimestamp, e.Timestamp)
	b = appendString(b, fieldVersion, e.Version)

	keys := make([]string, 0, len(e.Headers))
	for k := range e.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = appendString(entry, fieldMapKey, k)
		entry = appendString(entry, fieldMapValue, e.Headers[k])
		b = protowire.AppendTag(b, fieldHeaders, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

// Unmarshal decodes an Envelope. Errors wrap ErrMalformed.
func Unmarshal(b []byte) (Envelope, error) {
	var e Envelope
	err := walk(b, fieldHeaders, func(num protowire.Number, v []byte) error {
		switch num {
		case fieldPayload:
			e.Payload = append([]byte(nil), v...)
		case fieldMessageType:
			return setString(&e.MessageType, "message_type", v)
		case fieldTimestamp:
			return setString(&e.Timestamp, "timestamp", v)
		case fieldVersion:
			return setString(&e.Version, "version", v)
		case fieldHeaders:
			k, val, err := unmarshalHeader(v)
			if err != nil {
				return err
			}
			if e.Headers == nil {
				e.Headers = make(map[string]string)
			}
			e.Headers[k] = val
		}
		return nil
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return e, nil
}

func unmarshalHeader(b []byte) (key, value string, err error) {
	err = walk(b, fieldMapValue, func(num protowire.Number, v []byte) error {
		switch num {
		case fieldMapKey:
			return setString(&key, "headers.key", v)
		case fieldMapValue:
			return setString(&value, "headers.value", v)
		}
		return nil
	})
	return key, value, err
}

// walk visits every length-delimited field in b. Field numbers up to maxKnown
// must be length-delimited; other fields of any wire type are skipped.
func walk(b []byte, maxKnown protowire.Number, visit func(num protowire.Number, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if typ != protowire.BytesType {
			if num <= maxKnown {
				return fmt.Errorf("field %d: unexpected wire type %d", num, typ)
			}
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := visit(num, v); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, name string, v []byte) error {
	if !utf8.Valid(v) {
		return fmt.Errorf("%s: invalid utf-8", name)
	}
	*dst = string(v)
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}
