package relay

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eventrelay/relay/internal/middleware"
	"github.com/eventrelay/relay/internal/processor"
	"github.com/eventrelay/relay/internal/protocol"
)

const defaultCaptureCapacity = 1000

// captureStore keeps forwarded envelopes in memory instead of sending them, so that tests can
// retrieve them by event ID. Envelopes without an event ID are dropped.
type captureStore struct {
	envelopes *lru.Cache[protocol.EventID, []byte]
}

func newCaptureStore(capacity int) *captureStore {
	envelopes, _ := lru.New[protocol.EventID, []byte](capacity)
	return &captureStore{envelopes: envelopes}
}

// Forward implements processor.Forwarder.
func (s *captureStore) Forward(_ context.Context, m *processor.ManagedEnvelope) error {
	if id := m.Envelope.EventID(); id != "" {
		s.envelopes.Add(id, m.Envelope.Serialize())
	}
	return nil
}

func (s *captureStore) get(id protocol.EventID) ([]byte, bool) {
	return s.envelopes.Get(id)
}

func (r *Relay) getCapturedEvent(w http.ResponseWriter, req *http.Request) {
	id, ok := protocol.ParseEventID(mux.Vars(req)["eventId"])
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	data, ok := r.capture.get(id)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "event not captured")
		return
	}
	w.Header().Set("Content-Type", protocol.ContentTypeEnvelope)
	_, _ = w.Write(data)
}
