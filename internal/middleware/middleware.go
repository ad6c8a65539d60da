package middleware

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/protocol"
	"github.com/eventrelay/relay/internal/util"

	"github.com/gorilla/mux"
)

const (
	// ProjectIDVar is the route variable that holds the project ID.
	ProjectIDVar = "projectId"

	forwardedForHeader = "X-Forwarded-For"
)

var allowedCORSHeaders = strings.Join([]string{ //nolint:gochecknoglobals
	"x-sentry-auth", "x-requested-with", "x-forwarded-for", "origin", "referer", "accept",
	"content-type", "authentication", "authorization", "content-encoding", "transfer-encoding",
	"sentry-trace", "baggage",
}, ", ")

var exposedCORSHeaders = strings.Join([]string{ //nolint:gochecknoglobals
	ErrorHeader, "X-Sentry-Rate-Limits", "Retry-After",
}, ", ")

// Chain combines a series of middleware functions that will be applied in the same order.
func Chain(middlewares ...mux.MiddlewareFunc) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		handler := next
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// ExtractAuth reads the SDK's public key and the project ID from the URL and attaches them to the
// request context as RequestInfo. Requests without valid authentication get a 401 response.
func ExtractAuth(now func() time.Time) mux.MiddlewareFunc {
	return extractAuth(now, true)
}

// ExtractOptionalAuth is like ExtractAuth but lets requests without authentication through with
// an empty public key. Envelopes may carry their DSN in the envelope header instead.
func ExtractOptionalAuth(now func() time.Time) mux.MiddlewareFunc {
	return extractAuth(now, false)
}

func extractAuth(now func() time.Time, required bool) mux.MiddlewareFunc {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			auth, err := protocol.AuthFromRequest(req)
			if err != nil && required {
				WriteError(w, http.StatusUnauthorized, err.Error())
				return
			}
			info := RequestInfo{
				Auth:       auth,
				RemoteAddr: RemoteAddr(req),
				ReceivedAt: now(),
			}
			if s, ok := mux.Vars(req)[ProjectIDVar]; ok {
				id, err := basictypes.ParseProjectID(s)
				if err != nil {
					WriteError(w, http.StatusBadRequest, msgBadProjectID)
					return
				}
				info.ProjectID = id
			}
			next.ServeHTTP(w, req.WithContext(WithRequestInfo(req.Context(), info)))
		})
	}
}

// DecodeBody decompresses the request body according to its Content-Encoding and limits it to
// maxBytes after decoding. Handlers read it with ReadBody.
func DecodeBody(maxBytes int64) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.ContentLength > 0 && maxBytes > 0 && req.ContentLength > maxBytes {
				WriteError(w, http.StatusRequestEntityTooLarge, msgPayloadTooLarge)
				return
			}
			body, err := util.NewReader(req.Body, req.Header.Get("Content-Encoding"), maxBytes)
			if err != nil {
				WriteError(w, http.StatusBadRequest, msgBadEncoding)
				return
			}
			req.Body = body
			req.Header.Del("Content-Encoding")
			next.ServeHTTP(w, req)
		})
	}
}

// ReadBody reads the whole request body. If the body was too large it writes a 413 response and
// returns false; the same goes for other read errors with a 400 response.
func ReadBody(w http.ResponseWriter, req *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		if errors.Is(err, util.ErrMaxBytesExceeded) {
			WriteError(w, http.StatusRequestEntityTooLarge, msgPayloadTooLarge)
		} else {
			WriteError(w, http.StatusBadRequest, err.Error())
		}
		return nil, false
	}
	return data, true
}

// CORS allows SDKs running in browsers to send data from any origin. Whether an origin is accepted
// for a project is decided later against the project's allowed domains. OPTIONS requests are
// answered here without calling the handler.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		origin := req.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", allowedCORSHeaders)
		h.Set("Access-Control-Expose-Headers", exposedCORSHeaders)
		h.Set("Access-Control-Max-Age", "3600")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// RemoteAddr returns the client address, preferring the first entry of X-Forwarded-For.
func RemoteAddr(req *http.Request) string {
	if fwd := req.Header.Get(forwardedForHeader); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
