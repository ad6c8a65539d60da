package credential

import (
	"errors"
	"fmt"
)

// KeyParseError is returned when a public or secret key string cannot be parsed.
type KeyParseError int

const (
	// KeyParseBadEncoding means the string was not valid base64.
	KeyParseBadEncoding KeyParseError = iota
	// KeyParseBadKey means the decoded bytes do not form a valid key.
	KeyParseBadKey
)

func (e KeyParseError) Error() string {
	switch e {
	case KeyParseBadEncoding:
		return "bad key encoding"
	default:
		return "bad key data"
	}
}

// UnpackError is returned when a signed payload cannot be verified or decoded.
type UnpackError int

const (
	// UnpackBadSignature means the signature did not match the data.
	UnpackBadSignature UnpackError = iota
	// UnpackBadEncoding means the signature or the signed header was not valid base64.
	UnpackBadEncoding
	// UnpackBadPayload means the signature was valid but the payload could not be decoded.
	UnpackBadPayload
	// UnpackSignatureExpired means the signature was valid but older than the allowed age.
	UnpackSignatureExpired
)

func (e UnpackError) Error() string {
	switch e {
	case UnpackBadSignature:
		return "invalid signature on data"
	case UnpackBadEncoding:
		return "could not decode signature"
	case UnpackBadPayload:
		return "could not deserialize payload"
	default:
		return "signature is too old"
	}
}

var (
	errRelayIDMismatch = errors.New("relay ID in register response does not match challenge")
	errNoPublicKey     = errors.New("register request does not contain a public key")
)

func errBadRelayVersion(s string) error {
	return fmt.Errorf("invalid relay version %q", s)
}

func errUnknownRelay(id RelayID) error {
	return fmt.Errorf("relay %s is not registered", id)
}

const (
	logMsgRelayRegistered = "Registered relay %s with public key %s"
	logMsgRelayExpired    = "Registration of relay %s expired"
	logMsgRelayReplaced   = "Relay %s registered again with a different public key"
)
