package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/eventrelay/relay/internal/credential"
	"github.com/eventrelay/relay/internal/upstream"

	"github.com/gorilla/mux"
)

// RelayVerifier checks signatures of downstream relays. It is implemented by credential.Registry.
type RelayVerifier interface {
	VerifySignature(id credential.RelayID, data []byte, signature string, maxAge time.Duration) (credential.RelayInfo, bool)
}

// VerifyRelaySignature accepts only requests signed by a known downstream relay. The verified relay
// is attached to the request context; the body stays readable for the handler.
func VerifyRelaySignature(verifier RelayVerifier, maxAge time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			id := req.Header.Get(upstream.RelayIDHeader)
			signature := req.Header.Get(upstream.RelaySignatureHeader)
			if id == "" || signature == "" {
				WriteError(w, http.StatusUnauthorized, msgBadSignature)
				return
			}
			body, ok := ReadBody(w, req)
			if !ok {
				return
			}
			info, ok := verifier.VerifySignature(credential.RelayID(id), body, signature, maxAge)
			if !ok {
				WriteError(w, http.StatusUnauthorized, msgBadSignature)
				return
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, req.WithContext(WithRelayInfo(req.Context(), info)))
		})
	}
}
