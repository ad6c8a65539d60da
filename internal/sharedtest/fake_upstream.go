package sharedtest

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/eventrelay/relay/internal/credential"
	"github.com/eventrelay/relay/internal/util"
)

const fakeUpstreamMaxAge = time.Minute

// FakeUpstream is an in-process upstream that implements the register handshake, serves project
// states, and records everything else that is posted to it.
type FakeUpstream struct {
	Secret credential.SecretKey

	mu                sync.Mutex
	registered        map[credential.RelayID]credential.PublicKey
	projectStates     map[string]json.RawMessage
	pending           map[string]bool
	projectRequests   [][]string
	outcomes          []json.RawMessage
	envelopes         [][]byte
	rateLimitRegister int
	rejectRegister    bool
}

// NewFakeUpstream creates a FakeUpstream with a fresh secret key.
func NewFakeUpstream() *FakeUpstream {
	sk, _ := credential.GenerateKeyPair()
	return &FakeUpstream{
		Secret:        sk,
		registered:    make(map[credential.RelayID]credential.PublicKey),
		projectStates: make(map[string]json.RawMessage),
		pending:       make(map[string]bool),
	}
}

// SetProjectState makes the upstream return a state for a public key. A nil state is returned as
// JSON null, which means the project does not exist.
func (f *FakeUpstream) SetProjectState(publicKey string, state json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if state == nil {
		state = json.RawMessage("null")
	}
	f.projectStates[publicKey] = state
	delete(f.pending, publicKey)
}

// SetPending makes the upstream report a key as pending until SetProjectState is called.
func (f *FakeUpstream) SetPending(publicKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[publicKey] = true
}

// RateLimitRegistrations makes the next n register challenges fail with 429.
func (f *FakeUpstream) RateLimitRegistrations(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimitRegister = n
}

// RejectRegistrations makes register challenges fail with 403.
func (f *FakeUpstream) RejectRegistrations(reject bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectRegister = reject
}

// IsRegistered returns true if the relay completed the handshake.
func (f *FakeUpstream) IsRegistered(id credential.RelayID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.registered[id]
	return ok
}

// Unregister forgets all registered relays, so their signed requests are rejected.
func (f *FakeUpstream) Unregister() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = make(map[credential.RelayID]credential.PublicKey)
}

// ProjectRequests returns the public keys of each project config request, in order.
func (f *FakeUpstream) ProjectRequests() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.projectRequests...)
}

// Outcomes returns the outcomes that were posted.
func (f *FakeUpstream) Outcomes() []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), f.outcomes...)
}

// Envelopes returns the envelope bodies that were posted, decompressed.
func (f *FakeUpstream) Envelopes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.envelopes...)
}

// Handler returns the HTTP handler of the fake.
func (f *FakeUpstream) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body, err = util.DecompressData(req.Header.Get("Content-Encoding"), body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch req.URL.Path {
		case "/api/0/relays/register/challenge/":
			f.handleChallenge(w, req, body)
		case "/api/0/relays/register/response/":
			f.handleResponse(w, req, body)
		case "/api/0/relays/projectconfigs/":
			if !f.verify(req, body) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "relay not registered"})
				return
			}
			f.handleProjectConfigs(w, body)
		case "/api/0/relays/outcomes/":
			if !f.verify(req, body) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "relay not registered"})
				return
			}
			var payload struct {
				Outcomes []json.RawMessage `json:"outcomes"`
			}
			_ = json.Unmarshal(body, &payload)
			f.mu.Lock()
			f.outcomes = append(f.outcomes, payload.Outcomes...)
			f.mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]interface{}{})
		default:
			f.mu.Lock()
			f.envelopes = append(f.envelopes, body)
			f.mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]interface{}{})
		}
	})
}

func (f *FakeUpstream) handleChallenge(w http.ResponseWriter, req *http.Request, body []byte) {
	f.mu.Lock()
	limited := f.rateLimitRegister > 0
	if limited {
		f.rateLimitRegister--
	}
	reject := f.rejectRegister
	f.mu.Unlock()
	if limited {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}
	if reject {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "relay rejected"})
		return
	}
	challenge, err := credential.CreateRegisterChallenge(body, req.Header.Get("X-Sentry-Relay-Signature"),
		f.Secret, fakeUpstreamMaxAge, time.Now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (f *FakeUpstream) handleResponse(w http.ResponseWriter, req *http.Request, body []byte) {
	resp, state, err := credential.ValidateRegisterResponse(body, req.Header.Get("X-Sentry-Relay-Signature"),
		f.Secret, fakeUpstreamMaxAge, time.Now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	f.mu.Lock()
	f.registered[state.RelayID] = state.PublicKey
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"relay_id": resp.RelayID})
}

func (f *FakeUpstream) handleProjectConfigs(w http.ResponseWriter, body []byte) {
	var query struct {
		PublicKeys []string `json:"publicKeys"`
	}
	if err := json.Unmarshal(body, &query); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projectRequests = append(f.projectRequests, query.PublicKeys)
	configs := make(map[string]json.RawMessage)
	pending := []string{}
	for _, key := range query.PublicKeys {
		if f.pending[key] {
			pending = append(pending, key)
			continue
		}
		if state, ok := f.projectStates[key]; ok {
			configs[key] = state
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"configs": configs, "pending": pending})
}

func (f *FakeUpstream) verify(req *http.Request, body []byte) bool {
	id := credential.RelayID(req.Header.Get("X-Sentry-Relay-Id"))
	f.mu.Lock()
	key, ok := f.registered[id]
	f.mu.Unlock()
	return ok && key.VerifyTimestamp(body, req.Header.Get("X-Sentry-Relay-Signature"), fakeUpstreamMaxAge)
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	data, _ := json.Marshal(value)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
