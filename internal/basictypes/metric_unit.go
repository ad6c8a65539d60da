package basictypes

import (
	"errors"
)

// ErrInvalidMetricUnit is returned for custom units that are too long or contain invalid characters.
var ErrInvalidMetricUnit = errors.New("invalid metric unit")

const maxCustomUnitLength = 15

// MetricUnitFamily groups units that can be converted into each other.
type MetricUnitFamily string

const (
	// UnitFamilyNone is the family of the "none" unit.
	UnitFamilyNone MetricUnitFamily = "none"
	// UnitFamilyDuration contains time units.
	UnitFamilyDuration MetricUnitFamily = "duration"
	// UnitFamilyInformation contains size units, both decimal and binary.
	UnitFamilyInformation MetricUnitFamily = "information"
	// UnitFamilyFraction contains ratios and percentages.
	UnitFamilyFraction MetricUnitFamily = "fraction"
	// UnitFamilyCustom is any unit not otherwise known.
	UnitFamilyCustom MetricUnitFamily = "custom"
)

// MetricUnit is the unit of a metric value, as written after "@" in a metric resource identifier.
type MetricUnit struct {
	family MetricUnitFamily
	name   string
}

var knownUnits = map[string]MetricUnitFamily{ //nolint:gochecknoglobals
	"nanosecond": UnitFamilyDuration, "microsecond": UnitFamilyDuration, "millisecond": UnitFamilyDuration,
	"second": UnitFamilyDuration, "minute": UnitFamilyDuration, "hour": UnitFamilyDuration,
	"day": UnitFamilyDuration, "week": UnitFamilyDuration,

	"bit": UnitFamilyInformation, "byte": UnitFamilyInformation,
	"kilobyte": UnitFamilyInformation, "kibibyte": UnitFamilyInformation,
	"megabyte": UnitFamilyInformation, "mebibyte": UnitFamilyInformation,
	"gigabyte": UnitFamilyInformation, "gibibyte": UnitFamilyInformation,
	"terabyte": UnitFamilyInformation, "tebibyte": UnitFamilyInformation,
	"petabyte": UnitFamilyInformation, "pebibyte": UnitFamilyInformation,
	"exabyte": UnitFamilyInformation, "exbibyte": UnitFamilyInformation,

	"ratio": UnitFamilyFraction, "percent": UnitFamilyFraction,
}

// MetricUnitNone is the unit of dimensionless values.
var MetricUnitNone = MetricUnit{family: UnitFamilyNone, name: "none"} //nolint:gochecknoglobals

// ParseMetricUnit parses a unit name. The empty string and "none" both mean MetricUnitNone.
func ParseMetricUnit(s string) (MetricUnit, error) {
	if s == "" || s == "none" {
		return MetricUnitNone, nil
	}
	if family, ok := knownUnits[s]; ok {
		return MetricUnit{family: family, name: s}, nil
	}
	if len(s) > maxCustomUnitLength {
		return MetricUnit{}, ErrInvalidMetricUnit
	}
	for _, ch := range s {
		if !isASCIIAlphanumeric(ch) {
			return MetricUnit{}, ErrInvalidMetricUnit
		}
	}
	return MetricUnit{family: UnitFamilyCustom, name: s}, nil
}

// MustParseMetricUnit is like ParseMetricUnit but panics on error. It is meant for constants.
func MustParseMetricUnit(s string) MetricUnit {
	u, err := ParseMetricUnit(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Family returns the unit family.
func (u MetricUnit) Family() MetricUnitFamily {
	if u.family == "" {
		return UnitFamilyNone
	}
	return u.family
}

// IsNone returns true for the "none" unit and for the zero value.
func (u MetricUnit) IsNone() bool {
	return u.name == "" || u.name == "none"
}

func (u MetricUnit) String() string {
	if u.IsNone() {
		return "none"
	}
	return u.name
}

func isASCIIAlphanumeric(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
