package quotas

import (
	"github.com/eventrelay/relay/internal/basictypes"
)

// ReasonCode is an arbitrary string that upstream attaches to a quota to explain rejections.
type ReasonCode string

// Quota is a limit on the amount of data of some categories in a time window.
type Quota struct {
	// ID identifies the quota for counting. A quota without an ID cannot be tracked, so it can
	// only reject everything (limit 0) or nothing.
	ID string `json:"id,omitempty"`
	// Categories limits the quota to these data categories. Empty means all categories.
	Categories []basictypes.DataCategory `json:"categories,omitempty"`
	Scope      QuotaScope                `json:"scope"`
	// ScopeID, if set, limits the quota to one organization, project or key.
	ScopeID string `json:"scopeId,omitempty"`
	// Limit is the maximum quantity per window. Nil means unlimited; zero rejects everything.
	Limit *uint64 `json:"limit,omitempty"`
	// Window is the window length in seconds.
	Window     *uint64    `json:"window,omitempty"`
	ReasonCode ReasonCode `json:"reasonCode,omitempty"`
}

// IsValid returns false for quotas Relay cannot enforce, such as unknown scopes or trackable
// quotas without a window.
func (q Quota) IsValid() bool {
	if q.Scope == ScopeUnknown {
		return false
	}
	for _, c := range q.Categories {
		if c == basictypes.DataCategoryUnknown {
			return false
		}
	}
	if q.ID != "" && q.Limit != nil && *q.Limit > 0 && (q.Window == nil || *q.Window == 0) {
		return false
	}
	return true
}

// Matches returns true if the quota applies to the item.
func (q Quota) Matches(item ItemScoping) bool {
	if !item.MatchesCategories(q.Categories) {
		return false
	}
	if q.ScopeID == "" {
		return true
	}
	return q.ScopeID == item.ScopeID(q.Scope)
}

// RejectsAll returns true for quotas with a limit of zero.
func (q Quota) RejectsAll() bool {
	return q.Limit != nil && *q.Limit == 0
}

// IsTrackable returns true if usage against the quota must be counted.
func (q Quota) IsTrackable() bool {
	return q.ID != "" && q.Limit != nil && *q.Limit > 0 && q.Window != nil && *q.Window > 0
}

// Uint64 is a convenience for building quotas in code.
func Uint64(n uint64) *uint64 {
	return &n
}
