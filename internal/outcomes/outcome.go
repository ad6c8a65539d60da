package outcomes

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/quotas"
)

// Kind is the type of an outcome. The numeric values are part of the wire format.
type Kind int

// Outcome kinds.
const (
	KindAccepted      Kind = 0
	KindFiltered      Kind = 1
	KindRateLimited   Kind = 2
	KindInvalid       Kind = 3
	KindAbuse         Kind = 4
	KindClientDiscard Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindAccepted:
		return "accepted"
	case KindFiltered:
		return "filtered"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalid:
		return "invalid"
	case KindAbuse:
		return "abuse"
	case KindClientDiscard:
		return "client_discard"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// Reason codes of invalid outcomes.
const (
	ReasonPayload            = "payload"
	ReasonTooLarge           = "too_large"
	ReasonProjectID          = "project_id"
	ReasonProjectStateFailed = "project_state"
	ReasonInvalidProfile     = "profiling_invalid"
	ReasonInternal           = "internal"
	ReasonDisabled           = "disabled"
	ReasonDuplicateItem      = "duplicate_item"
)

// Outcome is the fate of a quantity of one data category.
type Outcome struct {
	Kind      Kind
	Reason    string
	Scoping   quotas.Scoping
	Category  basictypes.DataCategory
	Quantity  uint32
	Timestamp time.Time
	EventID   string
	// RemoteAddr is the address of the client that sent the data. It is never aggregated.
	RemoteAddr string
}

// TrackRawOutcome is the wire representation of an outcome.
type TrackRawOutcome struct {
	Timestamp  string  `json:"timestamp"`
	OrgID      *uint64 `json:"org_id,omitempty"`
	ProjectID  uint64  `json:"project_id"`
	KeyID      *uint64 `json:"key_id,omitempty"`
	Outcome    Kind    `json:"outcome"`
	Reason     *string `json:"reason,omitempty"`
	EventID    *string `json:"event_id,omitempty"`
	RemoteAddr *string `json:"remote_addr,omitempty"`
	Source     *string `json:"source,omitempty"`
	Category   *int    `json:"category,omitempty"`
	Quantity   *uint32 `json:"quantity,omitempty"`
}

const outcomeTimestampFormat = "2006-01-02T15:04:05.000000Z"

// ToRaw converts an outcome for sending. source names this relay; it may be empty.
func (o Outcome) ToRaw(source string) TrackRawOutcome {
	raw := TrackRawOutcome{
		Timestamp:  o.Timestamp.UTC().Format(outcomeTimestampFormat),
		ProjectID:  uint64(o.Scoping.ProjectID),
		Outcome:    o.Kind,
		Reason:     optString(o.Reason),
		EventID:    optString(o.EventID),
		RemoteAddr: optString(o.RemoteAddr),
		Source:     optString(source),
	}
	if o.Scoping.OrganizationID != 0 {
		orgID := o.Scoping.OrganizationID
		raw.OrgID = &orgID
	}
	if o.Scoping.KeyID != 0 {
		keyID := o.Scoping.KeyID
		raw.KeyID = &keyID
	}
	category := int(o.Category)
	raw.Category = &category
	quantity := o.Quantity
	raw.Quantity = &quantity
	return raw
}

// MarshalOutcomes encodes a batch in the body format of the outcomes endpoint.
func MarshalOutcomes(batch []TrackRawOutcome) ([]byte, error) {
	return json.Marshal(struct {
		Outcomes []TrackRawOutcome `json:"outcomes"`
	}{batch})
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Emitter accepts outcomes. Emit never blocks.
type Emitter interface {
	Emit(o Outcome)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Outcome)

// Emit implements Emitter.
func (f EmitterFunc) Emit(o Outcome) { f(o) }

// NullEmitter discards outcomes.
type NullEmitter struct{}

// Emit implements Emitter.
func (NullEmitter) Emit(Outcome) {}
