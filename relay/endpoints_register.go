package relay

import (
	"errors"
	"net/http"
	"time"

	"github.com/eventrelay/relay/internal/credential"
	"github.com/eventrelay/relay/internal/logging"
	"github.com/eventrelay/relay/internal/middleware"
	"github.com/eventrelay/relay/internal/upstream"
)

const msgUnsupportedVersion = "relay version is not supported"

type registerConfirmationRep struct {
	RelayID credential.RelayID `json:"relay_id"`
}

// registerChallenge answers the first step of the register handshake of a downstream relay. The
// request must be signed with the key it contains.
func (r *Relay) registerChallenge(maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, ok := middleware.ReadBody(w, req)
		if !ok {
			return
		}
		challenge, err := credential.CreateRegisterChallenge(
			body,
			req.Header.Get(upstream.RelaySignatureHeader),
			r.credentials.SecretKey,
			maxAge,
			r.clock.Now(),
		)
		if err != nil {
			logging.GetContextLoggers(req.Context()).Warnf(logMsgRegisterRejected, err)
			writeRegisterError(w, err)
			return
		}
		if header := req.Header.Get(upstream.RelayIDHeader); header != "" && credential.RelayID(header) != challenge.RelayID {
			middleware.WriteError(w, http.StatusBadRequest, "relay id header does not match request")
			return
		}
		writeJSON(w, http.StatusOK, challenge)
	}
}

// registerResponse completes the handshake. Statically configured relays must use their
// configured key; any other relay is registered as an external relay.
func (r *Relay) registerResponse(maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		loggers := logging.GetContextLoggers(req.Context())
		body, ok := middleware.ReadBody(w, req)
		if !ok {
			return
		}
		resp, state, err := credential.ValidateRegisterResponse(
			body,
			req.Header.Get(upstream.RelaySignatureHeader),
			r.credentials.SecretKey,
			maxAge,
			r.clock.Now(),
		)
		if err != nil {
			loggers.Warnf(logMsgRegisterRejected, err)
			writeRegisterError(w, err)
			return
		}
		if !resp.Version.Supported() {
			middleware.WriteError(w, http.StatusBadRequest, msgUnsupportedVersion)
			return
		}

		info := credential.RelayInfo{ID: state.RelayID, PublicKey: state.PublicKey, Version: resp.Version}
		if known, err := r.registry.Get(state.RelayID); err == nil && known.Internal {
			if !known.PublicKey.Equal(state.PublicKey) {
				middleware.WriteError(w, http.StatusUnauthorized, "public key does not match configured relay")
				return
			}
			info.Internal = true
		}
		r.registry.Register(info)
		loggers.Infof(logMsgRegistered, info.ID, info.Internal)
		writeJSON(w, http.StatusOK, registerConfirmationRep{RelayID: info.ID})
	}
}

func writeRegisterError(w http.ResponseWriter, err error) {
	var unpackErr credential.UnpackError
	if errors.As(err, &unpackErr) && unpackErr != credential.UnpackBadPayload {
		middleware.WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}
	middleware.WriteError(w, http.StatusBadRequest, err.Error())
}
