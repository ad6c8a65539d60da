package middleware

import (
	"net/http"

	"github.com/eventrelay/relay/internal/metrics"

	"github.com/gorilla/mux"
)

// RequestCount records the number, status and duration of requests per route template.
func RequestCount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Ignoring internal routing error that would have been ignored anyway
		route := "unknown"
		if r := mux.CurrentRoute(req); r != nil {
			if tmpl, err := r.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.WithRouteCount(req.Context(), route, req.Method, func() int {
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, req)
			if sw.status == 0 {
				return http.StatusOK
			}
			return sw.status
		})
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(data)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
