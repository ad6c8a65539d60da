package logging

import (
	"net/http"
	"strings"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	authHeaderName   = "X-Sentry-Auth"
	sentryKeyField   = "sentry_key="
	visibleKeyLength = 5
)

// RequestLoggerMiddleware logs every request at debug level once the response is complete.
func RequestLoggerMiddleware(loggers ldlog.Loggers) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			lw := &loggingResponseWriter{writer: w}
			next.ServeHTTP(lw, req)
			if lw.statusCode == 0 {
				lw.statusCode = http.StatusOK
			}
			loggers.Debugf("Request: method=%s url=%s key=%s status=%d bytes=%d duration=%s",
				req.Method,
				req.URL.Path,
				maskedKey(req),
				lw.statusCode,
				lw.bytesWritten,
				time.Since(start).Round(time.Millisecond),
			)
		})
	}
}

// maskedKey shows the end of the public key the request authenticated with, if any.
func maskedKey(req *http.Request) string {
	key := req.URL.Query().Get("sentry_key")
	if key == "" {
		header := req.Header.Get(authHeaderName)
		if header == "" {
			header = req.Header.Get("Authorization")
		}
		if i := strings.Index(header, sentryKeyField); i >= 0 {
			key = header[i+len(sentryKeyField):]
			if end := strings.IndexAny(key, ", "); end >= 0 {
				key = key[:end]
			}
		}
	}
	switch {
	case key == "":
		return "n/a"
	case len(key) > visibleKeyLength:
		return "*" + key[len(key)-visibleKeyLength:]
	default:
		return key
	}
}

type loggingResponseWriter struct {
	writer       http.ResponseWriter
	statusCode   int
	bytesWritten uint64
}

func (w *loggingResponseWriter) Header() http.Header {
	return w.writer.Header()
}

func (w *loggingResponseWriter) Write(data []byte) (int, error) {
	if w.statusCode == 0 {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.writer.Write(data)
	w.bytesWritten += uint64(n)
	return n, err
}

func (w *loggingResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.writer.WriteHeader(statusCode)
}

func (w *loggingResponseWriter) Flush() {
	if f, ok := w.writer.(http.Flusher); ok {
		f.Flush()
	}
}
