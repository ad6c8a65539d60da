package credential

import (
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// RelayInfo is what an upstream knows about a downstream relay.
type RelayInfo struct {
	ID        RelayID
	PublicKey PublicKey
	Version   RelayVersion
	// Internal relays are trusted with full project configurations.
	Internal bool
}

type registeredRelay struct {
	info   RelayInfo
	expiry time.Time
	static bool
}

// Registry keeps the public keys of relays that completed the register handshake, plus any relays
// configured statically. Dynamic registrations expire after a fixed time and must be renewed.
type Registry struct {
	relays  map[RelayID]*registeredRelay
	ttl     time.Duration
	now     func() time.Time
	loggers ldlog.Loggers
	lock    sync.RWMutex
}

// NewRegistry creates an empty registry. If now is nil, time.Now is used.
func NewRegistry(ttl time.Duration, loggers ldlog.Loggers, now func() time.Time) *Registry {
	r := &Registry{
		relays:  make(map[RelayID]*registeredRelay),
		ttl:     ttl,
		now:     now,
		loggers: loggers,
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.loggers.SetPrefix("[RelayRegistry]")
	return r
}

// AddStatic adds a relay that never expires.
func (r *Registry) AddStatic(info RelayInfo) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.relays[info.ID] = &registeredRelay{info: info, static: true}
}

// Register records a successful registration, replacing any previous one for the same relay.
func (r *Registry) Register(info RelayInfo) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if existing, ok := r.relays[info.ID]; ok {
		if existing.static {
			return
		}
		if !existing.info.PublicKey.Equal(info.PublicKey) {
			r.loggers.Warnf(logMsgRelayReplaced, info.ID)
		}
	}
	r.relays[info.ID] = &registeredRelay{info: info, expiry: r.now().Add(r.ttl)}
	r.loggers.Infof(logMsgRelayRegistered, info.ID, info.PublicKey.Masked())
}

// Get returns the relay with the given ID if it is registered and not expired.
func (r *Registry) Get(id RelayID) (RelayInfo, error) {
	r.lock.RLock()
	rr, ok := r.relays[id]
	r.lock.RUnlock()
	if !ok {
		return RelayInfo{}, errUnknownRelay(id)
	}
	if !rr.static && r.ttl > 0 && r.now().After(rr.expiry) {
		r.lock.Lock()
		if cur, ok := r.relays[id]; ok && cur == rr {
			delete(r.relays, id)
			r.loggers.Infof(logMsgRelayExpired, id)
		}
		r.lock.Unlock()
		return RelayInfo{}, errUnknownRelay(id)
	}
	return rr.info, nil
}

// VerifySignature looks up the relay and checks a signature made with its key.
func (r *Registry) VerifySignature(id RelayID, data []byte, signature string, maxAge time.Duration) (RelayInfo, bool) {
	info, err := r.Get(id)
	if err != nil {
		return RelayInfo{}, false
	}
	return info, info.PublicKey.VerifyTimestampAt(data, signature, maxAge, r.now())
}
