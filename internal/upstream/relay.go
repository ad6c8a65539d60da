package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gregjones/httpcache"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/httpconfig"
	"github.com/eventrelay/relay/internal/util"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	// RelayIDHeader identifies the relay that signed a request.
	RelayIDHeader = "X-Sentry-Relay-Id"
	// RelaySignatureHeader carries the signature of the request body.
	RelaySignatureHeader = "X-Sentry-Relay-Signature"

	// DefaultMaxRetryInterval caps the backoff between failed registration attempts.
	DefaultMaxRetryInterval = time.Minute
	// DefaultAuthInterval is how often a registered relay repeats the register handshake.
	DefaultAuthInterval = 10 * time.Minute

	maxErrorBodySize = 64 * 1024
)

// Config describes how to reach the upstream.
type Config struct {
	Upstream         config.UpstreamDescriptor
	Mode             config.RelayMode
	Credentials      *config.Credentials
	HTTP             httpconfig.HTTPConfig
	Encoding         config.HTTPEncoding
	MaxRetryInterval time.Duration
	AuthInterval     time.Duration
}

// ConfigFromRelayConfig extracts the upstream settings from the Relay configuration.
func ConfigFromRelayConfig(c config.Config, creds *config.Credentials, hc httpconfig.HTTPConfig) Config {
	return Config{
		Upstream:         c.Relay.Upstream,
		Mode:             c.Relay.Mode.GetOrDefault(),
		Credentials:      creds,
		HTTP:             hc,
		Encoding:         c.HTTP.Encoding.GetOrDefault(),
		MaxRetryInterval: c.HTTP.MaxRetryInterval.GetOrElse(DefaultMaxRetryInterval),
		AuthInterval:     c.HTTP.AuthRetryInterval.GetOrElse(DefaultAuthInterval),
	}
}

// Request is a request to the upstream.
type Request struct {
	Method      string
	Path        string
	Body        []byte
	ContentType string
	Header      http.Header

	// Signed adds the relay ID and signature headers. It requires credentials.
	Signed bool
	// Compress encodes the body with the configured HTTP encoding.
	Compress bool
	// SkipAuth sends the request without waiting for registration to complete.
	SkipAuth bool
}

// Response is a successful upstream response with its body already read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Relay is the client for the upstream.
type Relay struct {
	config  Config
	client  *http.Client
	clock   clock.Clock
	loggers ldlog.Loggers

	mu            sync.RWMutex
	authenticated bool
	authCh        chan struct{}
	outageSince   time.Time
}

// NewRelay creates an upstream client. Call Start to begin registration in managed mode.
func NewRelay(cfg Config, clk clock.Clock, loggers ldlog.Loggers) *Relay {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.MaxRetryInterval <= 0 {
		cfg.MaxRetryInterval = DefaultMaxRetryInterval
	}
	if cfg.AuthInterval <= 0 {
		cfg.AuthInterval = DefaultAuthInterval
	}
	loggers.SetPrefix("[Upstream]")
	r := &Relay{
		config:  cfg,
		client:  cfg.HTTP.Client(),
		clock:   clk,
		loggers: loggers,
		authCh:  make(chan struct{}),
	}
	if !r.RequiresAuth() {
		r.authenticated = true
		close(r.authCh)
	}
	return r
}

// RequiresAuth returns true if requests must wait for the register handshake. Only managed relays
// authenticate; proxy and static relays forward without registering.
func (r *Relay) RequiresAuth() bool {
	return r.config.Mode.GetOrDefault() == config.RelayModeManaged
}

// IsAuthenticated returns true once registration has succeeded, or always if no registration is
// needed.
func (r *Relay) IsAuthenticated() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.authenticated
}

// IsNetworkOutage returns true while the upstream has been unreachable since the last request.
func (r *Relay) IsNetworkOutage() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.outageSince.IsZero()
}

// WaitAuthenticated blocks until the relay is authenticated or the context ends.
func (r *Relay) WaitAuthenticated(ctx context.Context) error {
	r.mu.RLock()
	ch := r.authCh
	r.mu.RUnlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return errAuthDenied(ctx.Err())
	}
}

// URL returns the absolute URL of an upstream path.
func (r *Relay) URL(path string) string {
	return r.config.Upstream.URL(path)
}

// Credentials returns the relay's credentials, if any.
func (r *Relay) Credentials() *config.Credentials {
	return r.config.Credentials
}

// Send performs a request. Non-2xx responses are returned as UpstreamError.
func (r *Relay) Send(ctx context.Context, req Request) (*Response, error) {
	if r.RequiresAuth() && !req.SkipAuth {
		if err := r.WaitAuthenticated(ctx); err != nil {
			return nil, err
		}
	}

	body := req.Body
	encoding := ""
	if req.Compress && body != nil {
		encoding = string(r.config.Encoding.GetOrDefault())
		if encoding == string(config.HTTPEncodingIdentity) {
			encoding = ""
		}
		compressed, err := util.CompressData(encoding, body)
		if err != nil {
			return nil, errPayloadFailed(err)
		}
		body = compressed
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := r.config.HTTP.NewRequest(method, r.URL(req.Path), body)
	if err != nil {
		return nil, errSendFailed(err)
	}
	httpReq = httpReq.WithContext(ctx)
	for k, vv := range req.Header {
		for _, v := range vv {
			httpReq.Header.Add(k, v)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if encoding != "" {
		httpReq.Header.Set("Content-Encoding", encoding)
	}
	if req.Signed {
		creds := r.config.Credentials
		if creds == nil {
			return nil, errMissingCredentials()
		}
		httpReq.Header.Set(RelayIDHeader, creds.ID.String())
		httpReq.Header.Set(RelaySignatureHeader, creds.SecretKey.SignAt(req.Body, r.clock.Now()))
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		r.markOutage(true)
		return nil, errSendFailed(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	r.markOutage(resp.StatusCode >= 500)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, errRateLimited(resp)
		}
		return nil, errResponse(resp, errorDetail(detail))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errPayloadFailed(err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// SendJSON posts a JSON-encoded, signed body and decodes the JSON response into out, which may be
// nil.
func (r *Relay) SendJSON(ctx context.Context, path string, body, out interface{}) error {
	return r.sendJSON(ctx, path, body, out, false)
}

func (r *Relay) sendJSON(ctx context.Context, path string, body, out interface{}, skipAuth bool) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errPayloadFailed(err)
	}
	resp, err := r.Send(ctx, Request{
		Path:        path,
		Body:        data,
		ContentType: "application/json",
		Signed:      r.config.Credentials != nil,
		Compress:    !skipAuth,
		SkipAuth:    skipAuth,
	})
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return errPayloadFailed(err)
		}
	}
	return nil
}

// ForwardTransport returns a round tripper for requests that Relay passes through without
// understanding them. Cacheable upstream responses are kept in memory.
func (r *Relay) ForwardTransport() http.RoundTripper {
	t := httpcache.NewMemoryCacheTransport()
	t.Transport = r.config.HTTP.Transport()
	return t
}

func (r *Relay) markOutage(outage bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case outage && r.outageSince.IsZero():
		r.outageSince = r.clock.Now()
		r.loggers.Warn("Upstream appears to be unavailable")
	case !outage && !r.outageSince.IsZero():
		r.loggers.Infof("Upstream is reachable again after %s", r.clock.Since(r.outageSince))
		r.outageSince = time.Time{}
	}
}

func (r *Relay) setAuthenticated(authenticated bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if authenticated == r.authenticated {
		return
	}
	r.authenticated = authenticated
	if authenticated {
		close(r.authCh)
	} else {
		r.authCh = make(chan struct{})
	}
}

func errorDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
