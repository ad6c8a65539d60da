package credential

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eventrelay/relay/relay/version"
)

// RelayVersion is the version a relay reports to its upstream during registration.
type RelayVersion struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// OldestSupportedVersion is the oldest relay version that may register with this relay.
var OldestSupportedVersion = RelayVersion{Major: 20, Minor: 6, Patch: 0} //nolint:gochecknoglobals

// CurrentRelayVersion returns the version of this build.
func CurrentRelayVersion() RelayVersion {
	v, err := ParseRelayVersion(version.Version)
	if err != nil {
		return RelayVersion{}
	}
	return v
}

// ParseRelayVersion parses "major.minor.patch". Pre-release or build suffixes after "-" or "+"
// are ignored, and missing minor or patch components default to zero.
func ParseRelayVersion(s string) (RelayVersion, error) {
	core := s
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	parts := strings.Split(core, ".")
	if len(parts) == 0 || len(parts) > 3 || parts[0] == "" {
		return RelayVersion{}, errBadRelayVersion(s)
	}
	var nums [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return RelayVersion{}, errBadRelayVersion(s)
		}
		nums[i] = uint8(n)
	}
	return RelayVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Compare returns -1, 0, or 1 depending on whether v is older than, equal to, or newer than other.
func (v RelayVersion) Compare(other RelayVersion) int {
	for _, pair := range [][2]uint8{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}} {
		switch {
		case pair[0] < pair[1]:
			return -1
		case pair[0] > pair[1]:
			return 1
		}
	}
	return 0
}

// Supported returns true if this version may register.
func (v RelayVersion) Supported() bool {
	return v.Compare(OldestSupportedVersion) >= 0
}

func (v RelayVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// MarshalText implements encoding.TextMarshaler.
func (v RelayVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *RelayVersion) UnmarshalText(data []byte) error {
	parsed, err := ParseRelayVersion(string(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
