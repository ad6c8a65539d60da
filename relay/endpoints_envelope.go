package relay

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/eventrelay/relay/internal/logging"
	"github.com/eventrelay/relay/internal/middleware"
	"github.com/eventrelay/relay/internal/processor"
	"github.com/eventrelay/relay/internal/protocol"
	"github.com/eventrelay/relay/internal/quotas"
)

const (
	rateLimitsHeader = "X-Sentry-Rate-Limits"
	retryAfterHeader = "Retry-After"

	msgShuttingDown = "relay is shutting down"
	msgMissingAuth  = "missing authorization information"
)

type submitResponseRep struct {
	ID string `json:"id,omitempty"`
}

// postEnvelope accepts an envelope. Authentication may come from the request or, failing that,
// from the DSN in the envelope header.
func (r *Relay) postEnvelope(w http.ResponseWriter, req *http.Request) {
	info, _ := middleware.GetRequestInfo(req.Context())
	body, ok := middleware.ReadBody(w, req)
	if !ok {
		return
	}
	env, err := protocol.ParseEnvelope(body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if info.Auth.PublicKey == "" {
		key, ok := env.PublicKey()
		if !ok {
			middleware.WriteError(w, http.StatusUnauthorized, msgMissingAuth)
			return
		}
		info.Auth.PublicKey = key
	}
	r.submit(w, req, env, info)
}

// postStore accepts a single JSON event and handles it like an envelope containing it.
func (r *Relay) postStore(w http.ResponseWriter, req *http.Request) {
	info, _ := middleware.GetRequestInfo(req.Context())
	body, ok := middleware.ReadBody(w, req)
	if !ok {
		return
	}
	env, err := protocol.EnvelopeFromEvent(body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	r.submit(w, req, env, info)
}

func (r *Relay) submit(w http.ResponseWriter, req *http.Request, env *protocol.Envelope, info middleware.RequestInfo) {
	if r.isClosed() {
		middleware.WriteError(w, http.StatusServiceUnavailable, msgShuttingDown)
		return
	}
	origin := req.Header.Get("Origin")
	if origin == "" {
		origin = req.Header.Get("Referer")
	}
	m, err := r.processor.Check(req.Context(), env, processor.RequestMeta{
		Auth:       info.Auth,
		ProjectID:  info.ProjectID,
		RemoteAddr: info.RemoteAddr,
		Origin:     origin,
		ReceivedAt: info.ReceivedAt,
	})
	if err == nil {
		err = r.processor.Enqueue(m)
	}
	if err != nil {
		r.writeRejection(w, req, err)
		return
	}
	if m.RateLimits.IsLimited() {
		w.Header().Set(rateLimitsHeader, quotas.FormatRateLimitsHeader(m.RateLimits, r.clock.Now()))
	}
	writeJSON(w, http.StatusOK, submitResponseRep{ID: string(env.EventID())})
}

func (r *Relay) writeRejection(w http.ResponseWriter, req *http.Request, err error) {
	var rejection processor.Rejection
	if !errors.As(err, &rejection) {
		logging.GetContextLoggers(req.Context()).Errorf("Unexpected error handling envelope: %s", err)
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rejection.RateLimits.IsLimited() {
		now := r.clock.Now()
		w.Header().Set(rateLimitsHeader, quotas.FormatRateLimitsHeader(rejection.RateLimits, now))
		if longest, ok := rejection.RateLimits.Longest(); ok {
			w.Header().Set(retryAfterHeader, strconv.FormatUint(longest.RetryAfter.RemainingSeconds(now), 10))
		}
	}
	middleware.WriteError(w, rejection.Status, rejection.Detail)
}
