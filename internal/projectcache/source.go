package projectcache

import (
	"context"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/dynconfig"
)

// Source loads project states. Each call returns a new state that the caller may modify.
type Source interface {
	FetchState(ctx context.Context, key basictypes.ProjectKey) (*dynconfig.ProjectState, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, key basictypes.ProjectKey) (*dynconfig.ProjectState, error)

// FetchState implements Source.
func (f SourceFunc) FetchState(ctx context.Context, key basictypes.ProjectKey) (*dynconfig.ProjectState, error) {
	return f(ctx, key)
}

// ProxySource accepts every project key. Proxy relays have no project configs and leave all
// checks to their upstream.
type ProxySource struct{}

// FetchState returns an enabled state with default config that lists key as its only public key.
func (ProxySource) FetchState(_ context.Context, key basictypes.ProjectKey) (*dynconfig.ProjectState, error) {
	return &dynconfig.ProjectState{
		PublicKeys: []dynconfig.PublicKeyConfig{{PublicKey: key}},
		Config:     dynconfig.DefaultProjectConfig(),
	}, nil
}
