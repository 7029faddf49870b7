package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/noah-isme/backend-fieldsales/internal/common"
)

// BodyLimit caps request payloads. The body is read up front so an
// oversized invoice is refused before any handler touches the ledger.
type BodyLimit struct {
	Max int64
}

// Middleware answers 413 when the declared or actual body size exceeds Max.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	if b.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			payloadTooLarge(w)
			return
		}

		var buf bytes.Buffer
		_, err := buf.ReadFrom(http.MaxBytesReader(w, r.Body, b.Max))
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			payloadTooLarge(w)
			return
		case err != nil:
			common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request body", nil)
			return
		}

		r.Body = io.NopCloser(&buf)
		r.ContentLength = int64(buf.Len())
		next.ServeHTTP(w, r)
	})
}

func payloadTooLarge(w http.ResponseWriter) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body exceeds the configured limit", nil)
}
