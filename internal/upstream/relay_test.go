package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/httpconfig"
	"github.com/eventrelay/relay/internal/quotas"
	"github.com/eventrelay/relay/internal/sharedtest"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
)

func makeTestRelay(t *testing.T, serverURL string, mode config.RelayMode, creds *config.Credentials) *Relay {
	desc, err := config.ParseUpstreamDescriptor(serverURL)
	require.NoError(t, err)
	hc, err := httpconfig.NewHTTPConfig(config.ProxyConfig{}, config.HTTPConfig{}, ldlog.NewDisabledLoggers())
	require.NoError(t, err)
	return NewRelay(Config{Upstream: desc, Mode: mode, Credentials: creds, HTTP: hc}, nil, ldlog.NewDisabledLoggers())
}

func TestProxyModeDoesNotRequireAuth(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(http.StatusOK))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		r := makeTestRelay(t, server.URL, config.RelayModeProxy, nil)
		assert.False(t, r.RequiresAuth())
		assert.True(t, r.IsAuthenticated())

		resp, err := r.Send(context.Background(), Request{Path: "/api/42/envelope/", Body: []byte("x")})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		req := <-requestsCh
		assert.Equal(t, "/api/42/envelope/", req.Request.URL.Path)
		assert.Equal(t, "", req.Request.Header.Get(RelayIDHeader))
		assert.Contains(t, req.Request.Header.Get("User-Agent"), "EventRelay/")
	})
}

func TestSignedRequestCarriesRelayHeaders(t *testing.T) {
	creds := config.GenerateCredentials()
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(http.StatusOK))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		r := makeTestRelay(t, server.URL, config.RelayModeProxy, &creds)
		_, err := r.Send(context.Background(), Request{Path: "/x/", Body: []byte(`{"a":1}`), Signed: true})
		require.NoError(t, err)

		req := <-requestsCh
		assert.Equal(t, creds.ID.String(), req.Request.Header.Get(RelayIDHeader))
		sig := req.Request.Header.Get(RelaySignatureHeader)
		assert.True(t, creds.PublicKey.Verify([]byte(`{"a":1}`), sig))
	})
}

func TestSignedRequestWithoutCredentialsFails(t *testing.T) {
	r := makeTestRelay(t, "http://localhost:1", config.RelayModeProxy, nil)
	_, err := r.Send(context.Background(), Request{Path: "/x/", Signed: true})
	assert.True(t, errors.Is(err, UpstreamError{Kind: ErrorKindAuthDenied}))
}

func TestCompressedRequest(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(http.StatusOK))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		r := makeTestRelay(t, server.URL, config.RelayModeProxy, nil)
		r.config.Encoding = config.HTTPEncodingGzip
		_, err := r.Send(context.Background(), Request{Path: "/x/", Body: []byte("hello"), Compress: true})
		require.NoError(t, err)

		req := <-requestsCh
		assert.Equal(t, "gzip", req.Request.Header.Get("Content-Encoding"))
		assert.NotEqual(t, "hello", string(req.Body))
	})
}

func TestRateLimitedResponse(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(http.StatusTooManyRequests,
		http.Header{quotas.RateLimitsHeader: []string{"60:transaction:project"}}, nil)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		r := makeTestRelay(t, server.URL, config.RelayModeProxy, nil)
		_, err := r.Send(context.Background(), Request{Path: "/x/"})

		var ue UpstreamError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, ErrorKindRateLimited, ue.Kind)
		assert.Equal(t, http.StatusTooManyRequests, ue.StatusCode)

		pid, _ := basictypes.ParseProjectID("42")
		scoping := quotas.Scoping{ProjectID: pid}
		now := time.Now()
		limits := ue.RateLimits(scoping, now)
		assert.True(t, limits.Check(scoping.Item(basictypes.DataCategoryTransaction), now).IsLimited())
		assert.False(t, limits.Check(scoping.Item(basictypes.DataCategoryError), now).IsLimited())
	})
}

func TestRateLimitedResponseWithRetryAfterOnly(t *testing.T) {
	err := UpstreamError{Kind: ErrorKindRateLimited, Header: http.Header{"Retry-After": []string{"30"}}}
	now := time.Now()
	limits := err.RateLimits(quotas.Scoping{}, now)
	longest, ok := limits.Longest()
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, longest.RetryAfter.Remaining(now))
}

func TestErrorResponse(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(http.StatusBadRequest, nil, []byte(`{"detail":"nope"}`))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		r := makeTestRelay(t, server.URL, config.RelayModeProxy, nil)
		_, err := r.Send(context.Background(), Request{Path: "/x/"})
		assert.True(t, errors.Is(err, UpstreamError{Kind: ErrorKindResponseError}))
		assert.Contains(t, err.Error(), "nope")
		assert.Contains(t, err.Error(), "400")
	})
}

func TestNetworkOutageIsTracked(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	r := makeTestRelay(t, "http://localhost:1", config.RelayModeProxy, nil)
	r.loggers = mockLog.Loggers
	_, err := r.Send(context.Background(), Request{Path: "/x/"})
	var ue UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.True(t, ue.IsNetworkError())
	assert.True(t, r.IsNetworkOutage())
	mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Upstream appears to be unavailable")
}

func TestRegistration(t *testing.T) {
	fake := sharedtest.NewFakeUpstream()
	creds := config.GenerateCredentials()
	httphelpers.WithServer(fake.Handler(), func(server *httptest.Server) {
		r := makeTestRelay(t, server.URL, config.RelayModeManaged, &creds)
		assert.True(t, r.RequiresAuth())
		assert.False(t, r.IsAuthenticated())

		require.NoError(t, r.Authenticate(context.Background()))
		assert.True(t, r.IsAuthenticated())
		assert.True(t, fake.IsRegistered(creds.ID))

		// signed requests are now accepted by the fake
		var out map[string]interface{}
		require.NoError(t, r.SendJSON(context.Background(), "/api/0/relays/projectconfigs/",
			map[string]interface{}{"publicKeys": []string{}}, &out))
		assert.Contains(t, out, "configs")
	})
}

func TestRegistrationWithoutCredentials(t *testing.T) {
	r := makeTestRelay(t, "http://localhost:1", config.RelayModeManaged, nil)
	err := r.Authenticate(context.Background())
	assert.True(t, errors.Is(err, UpstreamError{Kind: ErrorKindAuthDenied}))
}

func TestRegistrationDeniedResetsAuthentication(t *testing.T) {
	fake := sharedtest.NewFakeUpstream()
	creds := config.GenerateCredentials()
	httphelpers.WithServer(fake.Handler(), func(server *httptest.Server) {
		r := makeTestRelay(t, server.URL, config.RelayModeManaged, &creds)
		require.NoError(t, r.Authenticate(context.Background()))

		fake.RejectRegistrations(true)
		assert.Error(t, r.Authenticate(context.Background()))
		assert.False(t, r.IsAuthenticated())
	})
}

func TestRequestsWaitForAuthentication(t *testing.T) {
	fake := sharedtest.NewFakeUpstream()
	creds := config.GenerateCredentials()
	httphelpers.WithServer(fake.Handler(), func(server *httptest.Server) {
		r := makeTestRelay(t, server.URL, config.RelayModeManaged, &creds)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := r.Send(ctx, Request{Path: "/api/1/envelope/"})
		assert.True(t, errors.Is(err, UpstreamError{Kind: ErrorKindAuthDenied}))

		require.NoError(t, r.Authenticate(context.Background()))
		_, err = r.Send(context.Background(), Request{Path: "/api/1/envelope/", Body: []byte("e")})
		require.NoError(t, err)
		assert.Len(t, fake.Envelopes(), 1)
	})
}

func TestAuthLoopRetriesAfterRateLimit(t *testing.T) {
	fake := sharedtest.NewFakeUpstream()
	fake.RateLimitRegistrations(1)
	creds := config.GenerateCredentials()
	httphelpers.WithServer(fake.Handler(), func(server *httptest.Server) {
		r := makeTestRelay(t, server.URL, config.RelayModeManaged, &creds)
		mockClock := clock.NewMock()
		mockClock.Set(time.Now()) // requests are signed with this clock
		r.clock = mockClock

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		r.Start(ctx)

		// the first attempt is rate limited for one second; advance until the retry succeeds
		require.Eventually(t, func() bool {
			mockClock.Add(time.Second)
			return r.IsAuthenticated()
		}, time.Second*5, time.Millisecond*20)
		assert.True(t, fake.IsRegistered(creds.ID))
	})
}
