package httpx

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/k1networth/hello-pipeline/internal/shared/requestid"
)

const requestIDHeader = "X-Request-Id"

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if rid == "" {
			rid = newRequestID()
		}

		w.Header().Set(requestIDHeader, rid)
		next.ServeHTTP(w, r.WithContext(requestid.With(r.Context(), rid)))
	})
}

func newRequestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(b[:])
}
