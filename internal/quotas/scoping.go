package quotas

import (
	"strconv"

	"github.com/eventrelay/relay/internal/basictypes"
)

// QuotaScope is the entity that a quota applies to.
type QuotaScope string

const (
	// ScopeOrganization applies to all projects of an organization.
	ScopeOrganization QuotaScope = "organization"
	// ScopeProject applies to a single project.
	ScopeProject QuotaScope = "project"
	// ScopeKey applies to a single DSN public key.
	ScopeKey QuotaScope = "key"
	// ScopeUnknown is any scope this version of Relay does not know.
	ScopeUnknown QuotaScope = "unknown"
)

// ParseQuotaScope maps unknown names to ScopeUnknown.
func ParseQuotaScope(s string) QuotaScope {
	switch QuotaScope(s) {
	case ScopeOrganization, ScopeProject, ScopeKey:
		return QuotaScope(s)
	default:
		return ScopeUnknown
	}
}

func (s QuotaScope) String() string { return string(s) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *QuotaScope) UnmarshalText(data []byte) error {
	*s = ParseQuotaScope(string(data))
	return nil
}

// Scoping identifies where a piece of data came from.
type Scoping struct {
	OrganizationID uint64
	ProjectID      basictypes.ProjectID
	ProjectKey     basictypes.ProjectKey
	// KeyID is the numeric ID of the project key, if known.
	KeyID uint64
}

// Item combines the scoping with a data category.
func (s Scoping) Item(category basictypes.DataCategory) ItemScoping {
	return ItemScoping{Category: category, Scoping: s}
}

// ItemScoping is the scoping of one item of data.
type ItemScoping struct {
	Category basictypes.DataCategory
	Scoping
}

// ScopeID returns the identifier of the entity at the given scope, or "" if it is unknown.
func (s ItemScoping) ScopeID(scope QuotaScope) string {
	switch scope {
	case ScopeOrganization:
		return strconv.FormatUint(s.OrganizationID, 10)
	case ScopeProject:
		return s.ProjectID.String()
	case ScopeKey:
		if s.KeyID != 0 {
			return strconv.FormatUint(s.KeyID, 10)
		}
		return ""
	default:
		return ""
	}
}

// MatchesCategories returns true if the item's category is in the list, or the list is empty.
func (s ItemScoping) MatchesCategories(categories []basictypes.DataCategory) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if c == s.Category {
			return true
		}
	}
	return false
}
