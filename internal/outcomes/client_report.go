package outcomes

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/quotas"
)

const (
	// MaxClientReportAge is how far in the past a client report timestamp may lie.
	MaxClientReportAge = 5 * 24 * time.Hour
	// MaxClientReportSkew is how far in the future a client report timestamp may lie.
	MaxClientReportSkew = time.Minute
)

// DiscardedEvent is one entry of a client report.
type DiscardedEvent struct {
	Reason   string `json:"reason"`
	Category string `json:"category"`
	Quantity uint32 `json:"quantity"`
}

// ClientReport is the payload of a client_report envelope item: counts of data an SDK dropped
// before sending it.
type ClientReport struct {
	Timestamp              *clientReportTime `json:"timestamp,omitempty"`
	DiscardedEvents        []DiscardedEvent  `json:"discarded_events"`
	RateLimitedEvents      []DiscardedEvent  `json:"rate_limited_events"`
	FilteredEvents         []DiscardedEvent  `json:"filtered_events"`
	FilteredSamplingEvents []DiscardedEvent  `json:"filtered_sampling_events"`
}

// clientReportTime accepts either seconds since the epoch or an RFC 3339 string.
type clientReportTime struct {
	time.Time
}

func (t *clientReportTime) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err == nil {
		whole := int64(secs)
		t.Time = time.Unix(whole, int64((secs-float64(whole))*float64(time.Second))).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("timestamp must be a number or a string")
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

// ParseClientReport decodes a client report item payload.
func ParseClientReport(payload []byte) (ClientReport, error) {
	var report ClientReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return ClientReport{}, fmt.Errorf("invalid client report: %w", err)
	}
	return report, nil
}

// Outcomes converts the report into outcomes for the given scoping. Entries with an unknown
// category or a zero quantity are skipped, and a report whose timestamp is out of range yields
// nothing. A report without a timestamp is dated now.
func (r ClientReport) Outcomes(scoping quotas.Scoping, now time.Time) []Outcome {
	timestamp := now
	if r.Timestamp != nil {
		timestamp = r.Timestamp.Time
		if timestamp.Before(now.Add(-MaxClientReportAge)) || timestamp.After(now.Add(MaxClientReportSkew)) {
			return nil
		}
	}

	var result []Outcome
	add := func(kind Kind, entries []DiscardedEvent) {
		for _, e := range entries {
			category := basictypes.ParseDataCategory(e.Category)
			if category == basictypes.DataCategoryUnknown || e.Quantity == 0 {
				continue
			}
			result = append(result, Outcome{
				Kind:      kind,
				Reason:    e.Reason,
				Scoping:   scoping,
				Category:  category,
				Quantity:  e.Quantity,
				Timestamp: timestamp,
			})
		}
	}
	add(KindClientDiscard, r.DiscardedEvents)
	add(KindRateLimited, r.RateLimitedEvents)
	add(KindFiltered, r.FilteredEvents)
	add(KindFiltered, r.FilteredSamplingEvents)
	return result
}
