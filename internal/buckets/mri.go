package buckets

import (
	"strings"

	"github.com/eventrelay/relay/internal/basictypes"
)

// MetricType is the aggregation type of a metric, written as a single letter.
type MetricType string

const (
	// MetricTypeCounter sums all submitted values.
	MetricTypeCounter MetricType = "c"
	// MetricTypeDistribution keeps every submitted value.
	MetricTypeDistribution MetricType = "d"
	// MetricTypeSet counts unique values.
	MetricTypeSet MetricType = "s"
	// MetricTypeGauge keeps a summary of the submitted values.
	MetricTypeGauge MetricType = "g"
)

// ParseMetricType parses a type letter. "m" and "h" are accepted as aliases for distributions.
func ParseMetricType(s string) (MetricType, error) {
	switch s {
	case "c":
		return MetricTypeCounter, nil
	case "d", "m", "h":
		return MetricTypeDistribution, nil
	case "s":
		return MetricTypeSet, nil
	case "g":
		return MetricTypeGauge, nil
	default:
		return "", errInvalidMetricType(s)
	}
}

func (t MetricType) String() string { return string(t) }

// MetricNamespace is the use case a metric belongs to.
type MetricNamespace string

const (
	// NamespaceSessions is used by release health metrics.
	NamespaceSessions MetricNamespace = "sessions"
	// NamespaceTransactions is used by metrics extracted from transactions.
	NamespaceTransactions MetricNamespace = "transactions"
	// NamespaceSpans is used by metrics extracted from spans.
	NamespaceSpans MetricNamespace = "spans"
	// NamespaceCustom is used by metrics that SDKs submit directly.
	NamespaceCustom MetricNamespace = "custom"
	// NamespaceUnsupported is any namespace Relay does not know. Such metrics are dropped.
	NamespaceUnsupported MetricNamespace = "unsupported"
)

// ParseMetricNamespace maps unknown names to NamespaceUnsupported.
func ParseMetricNamespace(s string) MetricNamespace {
	switch MetricNamespace(s) {
	case NamespaceSessions, NamespaceTransactions, NamespaceSpans, NamespaceCustom:
		return MetricNamespace(s)
	default:
		return NamespaceUnsupported
	}
}

func (n MetricNamespace) String() string { return string(n) }

// MRI is a metric resource identifier: "<type>:<namespace>/<name>@<unit>".
type MRI struct {
	Type      MetricType
	Namespace MetricNamespace
	Name      string
	Unit      basictypes.MetricUnit
}

// ParseMRI parses a metric resource identifier. The type prefix is required; the namespace
// defaults to "custom" and the unit to "none". Invalid characters in the name are replaced
// with underscores.
func ParseMRI(s string) (MRI, error) {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return MRI{}, errInvalidMetricName(s)
	}
	ty, err := ParseMetricType(s[:colon])
	if err != nil {
		return MRI{}, err
	}
	return ParseMRIWithType(s[colon+1:], ty)
}

// ParseMRIWithType parses "[<namespace>/]<name>[@<unit>]" for a metric of a known type, which is
// the form used in the statsd format.
func ParseMRIWithType(s string, ty MetricType) (MRI, error) {
	nameAndUnit := s
	namespace := NamespaceCustom
	if slash := strings.IndexByte(s, '/'); slash >= 0 {
		namespace = ParseMetricNamespace(s[:slash])
		nameAndUnit = s[slash+1:]
	}

	name, unitName := nameAndUnit, ""
	if at := strings.LastIndexByte(nameAndUnit, '@'); at >= 0 {
		name, unitName = nameAndUnit[:at], nameAndUnit[at+1:]
	}
	unit, err := basictypes.ParseMetricUnit(unitName)
	if err != nil {
		return MRI{}, errInvalidMetricUnit(unitName)
	}

	name, ok := sanitizeMetricName(name)
	if !ok {
		return MRI{}, errInvalidMetricName(s)
	}
	return MRI{Type: ty, Namespace: namespace, Name: name, Unit: unit}, nil
}

// MustParseMRI is like ParseMRI but panics on error. It is meant for constants.
func MustParseMRI(s string) MRI {
	mri, err := ParseMRI(s)
	if err != nil {
		panic(err)
	}
	return mri
}

func (m MRI) String() string {
	return string(m.Type) + ":" + string(m.Namespace) + "/" + m.Name + "@" + m.Unit.String()
}

// sanitizeMetricName requires a leading ASCII letter and replaces anything other than
// [a-zA-Z0-9_.] with an underscore.
func sanitizeMetricName(name string) (string, bool) {
	if name == "" || !isASCIILetter(name[0]) {
		return "", false
	}
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if isASCIILetter(ch) || (ch >= '0' && ch <= '9') || ch == '_' || ch == '.' {
			b.WriteByte(ch)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String(), true
}

func isASCIILetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
