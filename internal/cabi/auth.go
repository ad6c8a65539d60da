package cabi

import (
	"encoding/json"
	"time"

	"github.com/eventrelay/relay/internal/credential"
)

// PublicKeyParse parses a public key. It returns nil on error.
func PublicKeyParse(s Str) *credential.PublicKey {
	return call(func() (*credential.PublicKey, error) {
		pk, err := credential.ParsePublicKey(s.Data)
		if err != nil {
			return nil, err
		}
		return &pk, nil
	})
}

// PublicKeyToString returns the string form of a public key.
func PublicKeyToString(pk *credential.PublicKey) Str {
	return NewStr(pk.String())
}

// PublicKeyVerify checks a signature without regard to its age.
func PublicKeyVerify(pk *credential.PublicKey, data Buf, signature Str) bool {
	return call(func() (bool, error) {
		return pk.Verify(data.Data, signature.Data), nil
	})
}

// PublicKeyVerifyTimestamp checks a signature and that it is at most maxAge seconds old. A maxAge
// of zero accepts any age.
func PublicKeyVerifyTimestamp(pk *credential.PublicKey, data Buf, signature Str, maxAge uint32) bool {
	return call(func() (bool, error) {
		return pk.VerifyTimestamp(data.Data, signature.Data, seconds(maxAge)), nil
	})
}

// SecretKeyParse parses a secret key. It returns nil on error.
func SecretKeyParse(s Str) *credential.SecretKey {
	return call(func() (*credential.SecretKey, error) {
		sk, err := credential.ParseSecretKey(s.Data)
		if err != nil {
			return nil, err
		}
		return &sk, nil
	})
}

// SecretKeyToString returns the string form of a secret key.
func SecretKeyToString(sk *credential.SecretKey) Str {
	return NewStr(sk.String())
}

// SecretKeySign signs data with the current time in the signature header.
func SecretKeySign(sk *credential.SecretKey, data Buf) Str {
	return NewStr(sk.Sign(data.Data))
}

// GenerateKeyPair creates a new random key pair.
func GenerateKeyPair() KeyPair {
	sk, pk := credential.GenerateKeyPair()
	return KeyPair{Public: &pk, Secret: &sk}
}

// GenerateRelayID returns a new random relay ID.
func GenerateRelayID() UUID {
	return uuidFromRelayID(credential.GenerateRelayID())
}

// CreateRegisterChallenge verifies a register request and returns the JSON challenge to send back.
func CreateRegisterChallenge(data Buf, signature Str, secret *credential.SecretKey, maxAge uint32) Str {
	return call(func() (Str, error) {
		challenge, err := credential.CreateRegisterChallenge(data.Data, signature.Data, *secret, seconds(maxAge), time.Now())
		if err != nil {
			return Str{}, err
		}
		return marshalStr(challenge)
	})
}

type registerResponseRep struct {
	RelayID   credential.RelayID      `json:"relay_id"`
	Token     string                  `json:"token"`
	PublicKey credential.PublicKey    `json:"public_key"`
	Version   credential.RelayVersion `json:"version"`
}

// ValidateRegisterResponse verifies a register response and returns it as JSON, together with the
// public key of the relay that registered.
func ValidateRegisterResponse(data Buf, signature Str, secret *credential.SecretKey, maxAge uint32) Str {
	return call(func() (Str, error) {
		resp, state, err := credential.ValidateRegisterResponse(data.Data, signature.Data, *secret, seconds(maxAge), time.Now())
		if err != nil {
			return Str{}, err
		}
		return marshalStr(registerResponseRep{
			RelayID:   resp.RelayID,
			Token:     resp.Token,
			PublicKey: state.PublicKey,
			Version:   resp.Version,
		})
	})
}

// VersionSupported returns true if a relay of the given version may register. An empty version
// means the relay predates versioning and is rejected.
func VersionSupported(version Str) bool {
	return call(func() (bool, error) {
		v, err := credential.ParseRelayVersion(version.Data)
		if err != nil {
			return false, err
		}
		return v.Supported(), nil
	})
}

// CompareVersions returns -1, 0 or 1 as version a is older than, equal to or newer than b.
func CompareVersions(a, b Str) int32 {
	return call(func() (int32, error) {
		va, err := credential.ParseRelayVersion(a.Data)
		if err != nil {
			return 0, err
		}
		vb, err := credential.ParseRelayVersion(b.Data)
		if err != nil {
			return 0, err
		}
		return int32(va.Compare(vb)), nil
	})
}

func seconds(n uint32) time.Duration {
	return time.Duration(n) * time.Second
}

func marshalStr(v interface{}) (Str, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Str{}, err
	}
	return NewStr(string(data)), nil
}
