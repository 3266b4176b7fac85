// Package jsoncodec is the JSON codec shared by the config loader, the
// greeting classifier and the HTTP API.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// Valid reports whether data is a syntactically valid JSON document.
func Valid(data []byte) bool {
	return defaultConfig.Valid(data)
}

func Encode(w io.Writer, v any) error {
	return defaultConfig.NewEncoder(w).Encode(v)
}

// NewStrictDecoder returns a decoder that rejects unknown object fields.
func NewStrictDecoder(r io.Reader) sonic.Decoder {
	dec := defaultConfig.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec
}
