package basictypes

import (
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidProjectKey is returned when a public key is not 32 hexadecimal characters.
var ErrInvalidProjectKey = errors.New("invalid project key")

// ErrInvalidProjectID is returned when a project ID is not a positive integer.
var ErrInvalidProjectID = errors.New("invalid project id")

// ProjectKey is the public key of a DSN, which identifies a project and one of its client keys.
//
// It is always stored in lowercase.
type ProjectKey string

// ParseProjectKey validates and normalizes a project key.
func ParseProjectKey(s string) (ProjectKey, error) {
	if len(s) != 32 {
		return "", ErrInvalidProjectKey
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", ErrInvalidProjectKey
	}
	return ProjectKey(strings.ToLower(s)), nil
}

func (k ProjectKey) String() string { return string(k) }

// UnmarshalText implements encoding.TextUnmarshaler with validation.
func (k *ProjectKey) UnmarshalText(data []byte) error {
	parsed, err := ParseProjectKey(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ProjectID is the numeric identifier of a project.
type ProjectID uint64

// ParseProjectID parses a decimal project ID.
func ParseProjectID(s string) (ProjectID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, ErrInvalidProjectID
	}
	return ProjectID(n), nil
}

func (p ProjectID) String() string { return strconv.FormatUint(uint64(p), 10) }
