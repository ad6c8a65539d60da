package protocol

import (
	"github.com/eventrelay/relay/internal/basictypes"
)

// ItemType is the "type" header of an envelope item.
type ItemType string

// Known item types. Anything else is kept as-is and treated as unknown.
const (
	ItemTypeEvent           ItemType = "event"
	ItemTypeTransaction     ItemType = "transaction"
	ItemTypeSecurity        ItemType = "security"
	ItemTypeAttachment      ItemType = "attachment"
	ItemTypeFormData        ItemType = "form_data"
	ItemTypeRawSecurity     ItemType = "raw_security"
	ItemTypeSession         ItemType = "session"
	ItemTypeSessions        ItemType = "sessions"
	ItemTypeStatsd          ItemType = "statsd"
	ItemTypeMetricBuckets   ItemType = "metric_buckets"
	ItemTypeClientReport    ItemType = "client_report"
	ItemTypeProfile         ItemType = "profile"
	ItemTypeReplayEvent     ItemType = "replay_event"
	ItemTypeReplayRecording ItemType = "replay_recording"
	ItemTypeCheckIn         ItemType = "check_in"
	ItemTypeSpan            ItemType = "span"
	ItemTypeUserReport      ItemType = "user_report"
	ItemTypeUnknown         ItemType = "unknown"
)

var knownItemTypes = map[ItemType]bool{ //nolint:gochecknoglobals
	ItemTypeEvent: true, ItemTypeTransaction: true, ItemTypeSecurity: true, ItemTypeAttachment: true,
	ItemTypeFormData: true, ItemTypeRawSecurity: true, ItemTypeSession: true, ItemTypeSessions: true,
	ItemTypeStatsd: true, ItemTypeMetricBuckets: true, ItemTypeClientReport: true, ItemTypeProfile: true,
	ItemTypeReplayEvent: true, ItemTypeReplayRecording: true, ItemTypeCheckIn: true, ItemTypeSpan: true,
	ItemTypeUserReport: true,
}

// IsKnown returns false for types this version of Relay does not understand. Such items are
// forwarded unchanged.
func (t ItemType) IsKnown() bool {
	return knownItemTypes[t]
}

// DataCategory returns the category that items of this type are counted in for rate limiting.
// The second return value is false for items that are not rate limited, such as metrics and
// client reports.
func (t ItemType) DataCategory() (basictypes.DataCategory, bool) {
	switch t {
	case ItemTypeEvent:
		return basictypes.DataCategoryError, true
	case ItemTypeTransaction:
		return basictypes.DataCategoryTransaction, true
	case ItemTypeSecurity, ItemTypeRawSecurity:
		return basictypes.DataCategorySecurity, true
	case ItemTypeAttachment:
		return basictypes.DataCategoryAttachment, true
	case ItemTypeSession, ItemTypeSessions:
		return basictypes.DataCategorySession, true
	case ItemTypeProfile:
		return basictypes.DataCategoryProfile, true
	case ItemTypeReplayEvent, ItemTypeReplayRecording:
		return basictypes.DataCategoryReplay, true
	case ItemTypeCheckIn:
		return basictypes.DataCategoryMonitor, true
	case ItemTypeSpan:
		return basictypes.DataCategorySpan, true
	default:
		return basictypes.DataCategoryUnknown, false
	}
}

// IsEvent returns true for items that create an event. An envelope carries at most one of them.
func (t ItemType) IsEvent() bool {
	switch t {
	case ItemTypeEvent, ItemTypeTransaction, ItemTypeSecurity, ItemTypeRawSecurity, ItemTypeFormData:
		return true
	default:
		return false
	}
}
