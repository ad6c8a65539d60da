package cabi

import (
	"strings"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/dynconfig"
)

// GlobFlags modify IsGlobMatch.
type GlobFlags uint32

// Glob flags. The values are part of the C ABI.
const (
	// GlobDoubleStar makes "*" stop at path separators so that only "**" crosses them.
	GlobDoubleStar GlobFlags = 1
	// GlobCaseInsensitive compares without regard to case.
	GlobCaseInsensitive GlobFlags = 2
	// GlobPathNormalize treats backslashes as forward slashes and ignores leading slashes.
	GlobPathNormalize GlobFlags = 4
	// GlobAllowNewline lets values containing line breaks match.
	GlobAllowNewline GlobFlags = 8
)

// DataCategoryName returns the name of a data category, or an empty string if it is unknown.
func DataCategoryName(category int32) Str {
	c := basictypes.DataCategoryFromValue(int(category))
	if c == basictypes.DataCategoryUnknown {
		return NewStr("")
	}
	return NewStr(c.String())
}

// DataCategoryParse returns the numeric value of a category name, or -1 if it is unknown.
func DataCategoryParse(name Str) int32 {
	return int32(basictypes.ParseDataCategory(name.Data))
}

// DataCategoryFromEventType returns the category of events of the given type, or -1 if the type
// is unknown.
func DataCategoryFromEventType(eventType Str) int32 {
	t, err := basictypes.ParseEventType(eventType.Data)
	if err != nil {
		return int32(basictypes.DataCategoryUnknown)
	}
	return int32(t.DataCategory())
}

// IsGlobMatch matches a value against a glob pattern.
func IsGlobMatch(value Buf, pattern Str, flags GlobFlags) bool {
	return call(func() (bool, error) {
		v, p := string(value.Data), pattern.Data
		if flags&GlobAllowNewline == 0 && strings.ContainsAny(v, "\r\n") {
			return false, nil
		}
		if flags&GlobCaseInsensitive != 0 {
			v, p = strings.ToLower(v), strings.ToLower(p)
		}
		if flags&GlobPathNormalize != 0 {
			v = strings.TrimLeft(strings.ReplaceAll(v, `\`, "/"), "/")
			p = strings.TrimLeft(strings.ReplaceAll(p, `\`, "/"), "/")
		}
		return basictypes.IsGlobMatch(v, p, flags&GlobDoubleStar != 0), nil
	})
}

// ValidateProjectConfig returns an error message if the project config is invalid, or an empty
// Str if it is valid.
func ValidateProjectConfig(value Str, strict bool) Str {
	return call(func() (Str, error) {
		return errorStr(dynconfig.ValidateProjectConfig([]byte(value.Data), strict)), nil
	})
}

// ValidateSamplingConfiguration returns an error message if the dynamic sampling configuration
// is invalid, or an empty Str if it is valid.
func ValidateSamplingConfiguration(value Str) Str {
	return call(func() (Str, error) {
		_, err := dynconfig.ParseSamplingConfig([]byte(value.Data))
		return errorStr(err), nil
	})
}

// ValidateSamplingCondition returns an error message if the rule condition is invalid or uses an
// unsupported operator, or an empty Str if it is valid.
func ValidateSamplingCondition(value Str) Str {
	return call(func() (Str, error) {
		_, err := dynconfig.ParseSamplingCondition([]byte(value.Data))
		return errorStr(err), nil
	})
}

// PIIStripEvent always fails with CodeUnsupported: this build does not apply PII rules.
func PIIStripEvent(config, event Str) Str {
	return call(func() (Str, error) {
		return Str{}, errPIIUnsupported
	})
}

func errorStr(err error) Str {
	if err == nil {
		return NewStr("")
	}
	return NewStr(err.Error())
}
