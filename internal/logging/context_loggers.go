package logging

import (
	"context"
	"net/http"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

type contextLoggersKey struct{}

// GetContextLoggers returns the Loggers attached to a request context by ContextLoggersMiddleware,
// or disabled loggers if there are none.
func GetContextLoggers(ctx context.Context) ldlog.Loggers {
	if l, ok := ctx.Value(contextLoggersKey{}).(ldlog.Loggers); ok {
		return l
	}
	return ldlog.NewDisabledLoggers()
}

// WithContextLoggers returns a copy of ctx that carries loggers.
func WithContextLoggers(ctx context.Context, loggers ldlog.Loggers) context.Context {
	return context.WithValue(ctx, contextLoggersKey{}, loggers)
}

// ContextLoggersMiddleware makes loggers available to every handler through GetContextLoggers.
func ContextLoggersMiddleware(loggers ldlog.Loggers) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithContextLoggers(r.Context(), loggers)))
		})
	}
}
