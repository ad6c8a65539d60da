package middleware

import (
	"context"
	"time"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/credential"
	"github.com/eventrelay/relay/internal/protocol"
)

type contextKeyType string

const (
	requestInfoKey contextKeyType = "request"
	relayInfoKey   contextKeyType = "relay"
)

// RequestInfo is what the middleware learned about an SDK request before the handler runs.
type RequestInfo struct {
	Auth protocol.AuthHeader
	// ProjectID is the project ID in the URL, or zero if the route has none.
	ProjectID  basictypes.ProjectID
	RemoteAddr string
	ReceivedAt time.Time
}

// GetRequestInfo returns the RequestInfo attached by ExtractAuth. The second value is false if the
// request did not pass through that middleware.
func GetRequestInfo(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey).(RequestInfo)
	return info, ok
}

// WithRequestInfo returns a new Context with the RequestInfo added.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey, info)
}

// GetRelayInfo returns the downstream relay that signed the request, as verified by
// VerifyRelaySignature.
func GetRelayInfo(ctx context.Context) (credential.RelayInfo, bool) {
	info, ok := ctx.Value(relayInfoKey).(credential.RelayInfo)
	return info, ok
}

// WithRelayInfo returns a new Context with the RelayInfo added.
func WithRelayInfo(ctx context.Context, info credential.RelayInfo) context.Context {
	return context.WithValue(ctx, relayInfoKey, info)
}
