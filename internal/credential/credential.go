// Package credential implements the key pairs that relays use to authenticate to their upstream,
// the signatures they put on requests, and the register handshake through which an upstream
// learns a relay's public key.
package credential

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/pborman/uuid"
)

// Credential is implemented by key types that may appear in configuration and log output.
type Credential interface {
	// Defined returns true if the credential is present.
	Defined() bool
	// String returns the string form of the credential.
	String() string
	// Masked returns a masked form of the credential suitable for log messages.
	Masked() string
}

var keyEncoding = base64.RawURLEncoding //nolint:gochecknoglobals

// PublicKey is the public half of a relay's Ed25519 key pair.
type PublicKey struct {
	key ed25519.PublicKey
}

// SecretKey is the private half of a relay's Ed25519 key pair. It never leaves the relay.
type SecretKey struct {
	key ed25519.PrivateKey
}

// RelayID uniquely identifies a relay to its upstream.
type RelayID string

// GenerateKeyPair creates a new random key pair.
func GenerateKeyPair() (SecretKey, PublicKey) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err) // only possible if the system random source is broken
	}
	return SecretKey{key: priv}, PublicKey{key: pub}
}

// GenerateRelayID returns a new random relay ID.
func GenerateRelayID() RelayID {
	return RelayID(uuid.NewRandom().String())
}

// ParsePublicKey parses the string form of a public key.
func ParsePublicKey(s string) (PublicKey, error) {
	data, err := keyEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return PublicKey{}, KeyParseBadEncoding
	}
	if len(data) != ed25519.PublicKeySize {
		return PublicKey{}, KeyParseBadKey
	}
	return PublicKey{key: ed25519.PublicKey(data)}, nil
}

// ParseSecretKey parses the string form of a secret key.
func ParseSecretKey(s string) (SecretKey, error) {
	data, err := keyEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return SecretKey{}, KeyParseBadEncoding
	}
	switch len(data) {
	case ed25519.PrivateKeySize:
		return SecretKey{key: ed25519.PrivateKey(data)}, nil
	case ed25519.SeedSize:
		return SecretKey{key: ed25519.NewKeyFromSeed(data)}, nil
	default:
		return SecretKey{}, KeyParseBadKey
	}
}

func (k PublicKey) Defined() bool { return len(k.key) != 0 } //nolint:golint

func (k PublicKey) String() string { return keyEncoding.EncodeToString(k.key) }

// Masked returns the first few characters of the key.
func (k PublicKey) Masked() string { return maskKey(k.String()) }

// Equal returns true if both keys are the same.
func (k PublicKey) Equal(other PublicKey) bool { return k.key.Equal(other.key) }

// MarshalText implements encoding.TextMarshaler.
func (k PublicKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PublicKey) UnmarshalText(data []byte) error {
	parsed, err := ParsePublicKey(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k SecretKey) Defined() bool { return len(k.key) != 0 } //nolint:golint

func (k SecretKey) String() string { return keyEncoding.EncodeToString(k.key) }

// Masked never reveals any part of a secret key.
func (k SecretKey) Masked() string {
	if !k.Defined() {
		return ""
	}
	return "********"
}

// PublicKey derives the public half of the key pair.
func (k SecretKey) PublicKey() PublicKey {
	return PublicKey{key: k.key.Public().(ed25519.PublicKey)}
}

// MarshalText implements encoding.TextMarshaler.
func (k SecretKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SecretKey) UnmarshalText(data []byte) error {
	parsed, err := ParseSecretKey(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (id RelayID) String() string { return string(id) }

func maskKey(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8] + "..."
}
