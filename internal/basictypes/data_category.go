package basictypes

import (
	"encoding/json"
)

// DataCategory classifies the kind of data that is being counted for rate limiting and outcomes.
//
// The numeric values are stable: they appear in outcomes produced upstream and in the C API.
type DataCategory int

const (
	// DataCategoryUnknown is used for any category name that this version of Relay does not know.
	DataCategoryUnknown DataCategory = -1
	// DataCategoryDefault is the category of events without a more specific type.
	DataCategoryDefault DataCategory = 0
	// DataCategoryError is the category of error events.
	DataCategoryError DataCategory = 1
	// DataCategoryTransaction is the category of transaction events.
	DataCategoryTransaction DataCategory = 2
	// DataCategorySecurity is the category of security reports (CSP, HPKP, Expect-CT, Expect-Staple).
	DataCategorySecurity DataCategory = 3
	// DataCategoryAttachment is counted in bytes of attachment data.
	DataCategoryAttachment DataCategory = 4
	// DataCategorySession is the category of release health session updates.
	DataCategorySession DataCategory = 5
	// DataCategoryProfile is the category of profiles.
	DataCategoryProfile DataCategory = 6
	// DataCategoryReplay is the category of session replays.
	DataCategoryReplay DataCategory = 7
	// DataCategoryTransactionProcessed counts transactions after metrics extraction.
	DataCategoryTransactionProcessed DataCategory = 8
	// DataCategoryTransactionIndexed counts transactions that are stored as events.
	DataCategoryTransactionIndexed DataCategory = 9
	// DataCategoryMonitor is the category of cron monitor check-ins.
	DataCategoryMonitor DataCategory = 10
	// DataCategoryProfileIndexed counts profiles that are stored as events.
	DataCategoryProfileIndexed DataCategory = 11
	// DataCategorySpan is the category of individual spans.
	DataCategorySpan DataCategory = 12
)

var dataCategoryNames = map[DataCategory]string{ //nolint:gochecknoglobals
	DataCategoryDefault:              "default",
	DataCategoryError:                "error",
	DataCategoryTransaction:          "transaction",
	DataCategorySecurity:             "security",
	DataCategoryAttachment:           "attachment",
	DataCategorySession:              "session",
	DataCategoryProfile:              "profile",
	DataCategoryReplay:               "replay",
	DataCategoryTransactionProcessed: "transaction_processed",
	DataCategoryTransactionIndexed:   "transaction_indexed",
	DataCategoryMonitor:              "monitor",
	DataCategoryProfileIndexed:       "profile_indexed",
	DataCategorySpan:                 "span",
}

// ParseDataCategory returns the category with the given name, or DataCategoryUnknown.
func ParseDataCategory(name string) DataCategory {
	for c, n := range dataCategoryNames {
		if n == name {
			return c
		}
	}
	return DataCategoryUnknown
}

// DataCategoryFromValue returns the category with the given numeric value, or DataCategoryUnknown.
func DataCategoryFromValue(value int) DataCategory {
	if _, ok := dataCategoryNames[DataCategory(value)]; ok {
		return DataCategory(value)
	}
	return DataCategoryUnknown
}

// AllDataCategories returns every known category in ascending numeric order.
func AllDataCategories() []DataCategory {
	ret := make([]DataCategory, 0, len(dataCategoryNames))
	for c := DataCategoryDefault; c <= DataCategorySpan; c++ {
		ret = append(ret, c)
	}
	return ret
}

// String returns the canonical name of the category.
func (c DataCategory) String() string {
	if n, ok := dataCategoryNames[c]; ok {
		return n
	}
	return "unknown"
}

// IsError returns true for categories that represent error events.
func (c DataCategory) IsError() bool {
	switch c {
	case DataCategoryError, DataCategoryDefault, DataCategorySecurity:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c DataCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names are not an error.
func (c *DataCategory) UnmarshalText(data []byte) error {
	*c = ParseDataCategory(string(data))
	return nil
}

// UnmarshalJSON accepts either the category name or its numeric value.
func (c *DataCategory) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = DataCategoryFromValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseDataCategory(s)
	return nil
}
