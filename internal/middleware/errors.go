package middleware

import (
	"net/http"

	"github.com/eventrelay/relay/internal/util"
)

const (
	// ErrorHeader repeats the error detail for clients that do not read response bodies.
	ErrorHeader = "X-Sentry-Error"

	msgBadProjectID    = "invalid project id"
	msgPayloadTooLarge = "request body exceeds size limit"
	msgBadEncoding     = "unsupported or invalid content encoding"
	msgBadSignature    = "invalid relay signature"
)

// WriteError sends a JSON error response of the form {"detail": "..."}.
func WriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	if detail != "" {
		w.Header().Set(ErrorHeader, detail)
	}
	w.WriteHeader(status)
	_, _ = w.Write(util.ErrorJSONMsg(detail))
}
