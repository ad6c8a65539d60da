package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/eventrelay/relay/internal/credential"
	"github.com/eventrelay/relay/internal/quotas"
)

const (
	registerChallengePath = "/api/0/relays/register/challenge/"
	registerResponsePath  = "/api/0/relays/register/response/"

	initialRetryInterval = time.Second
)

type registerConfirmation struct {
	RelayID credential.RelayID `json:"relay_id"`
	Token   string             `json:"token,omitempty"`
}

// Start begins the register handshake in the background, repeating it every auth interval. It
// returns immediately; use WaitAuthenticated to block until the first registration succeeds. It
// does nothing if the relay does not need to authenticate.
func (r *Relay) Start(ctx context.Context) {
	if !r.RequiresAuth() {
		return
	}
	go r.runAuthLoop(ctx)
}

func (r *Relay) runAuthLoop(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialRetryInterval
	b.MaxInterval = r.config.MaxRetryInterval
	b.MaxElapsedTime = 0
	b.Clock = r.clock

	for {
		var wait time.Duration
		err := r.Authenticate(ctx)
		if err == nil {
			b.Reset()
			wait = r.config.AuthInterval
		} else {
			wait = b.NextBackOff()
			var ue UpstreamError
			if errors.As(err, &ue) && ue.Kind == ErrorKindRateLimited {
				limits := ue.RateLimits(quotas.Scoping{}, r.clock.Now())
				if longest, ok := limits.Longest(); ok {
					if d := longest.RetryAfter.Remaining(r.clock.Now()); d > wait {
						wait = d
					}
				}
			}
			r.loggers.Errorf("Authentication with upstream failed: %s; retrying in %s", err, wait)
		}

		timer := r.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Authenticate performs one register handshake.
func (r *Relay) Authenticate(ctx context.Context) error {
	creds := r.config.Credentials
	if creds == nil {
		return errMissingCredentials()
	}
	r.loggers.Infof("Registering with upstream %s as relay %s", r.config.Upstream, creds.ID)

	var challenge credential.RegisterChallenge
	req := credential.NewRegisterRequest(creds.ID, creds.PublicKey)
	if err := r.sendJSON(ctx, registerChallengePath, req, &challenge, true); err != nil {
		r.rejectIfDenied(err)
		return err
	}

	var confirmation registerConfirmation
	if err := r.sendJSON(ctx, registerResponsePath, challenge.CreateResponse(), &confirmation, true); err != nil {
		r.rejectIfDenied(err)
		return err
	}
	if confirmation.RelayID != creds.ID {
		return errRelayIDMismatch(creds.ID.String(), confirmation.RelayID.String())
	}

	if !r.IsAuthenticated() {
		r.loggers.Info("Relay successfully registered with upstream")
	}
	r.setAuthenticated(true)
	return nil
}

// An explicit rejection means our key is no longer accepted; network errors and rate limits
// leave the previous registration in place.
func (r *Relay) rejectIfDenied(err error) {
	var ue UpstreamError
	if errors.As(err, &ue) && ue.Kind == ErrorKindResponseError && ue.StatusCode >= 400 && ue.StatusCode < 500 {
		r.setAuthenticated(false)
	}
}
