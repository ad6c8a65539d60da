package credential

import (
	"crypto/ed25519"
	"encoding/json"
	"strings"
	"time"
)

// SignatureHeader is the metadata signed together with the data. It is transmitted alongside the
// signature so that the verifier can reconstruct the signed message.
type SignatureHeader struct {
	Timestamp *time.Time `json:"t,omitempty"`
}

// Expired returns true if the header has a timestamp older than maxAge. A header without a
// timestamp never expires.
func (h SignatureHeader) Expired(maxAge time.Duration, now time.Time) bool {
	if h.Timestamp == nil || maxAge <= 0 {
		return false
	}
	return now.Sub(*h.Timestamp) > maxAge
}

// Sign signs the data with a header that carries the current time.
func (k SecretKey) Sign(data []byte) string {
	return k.SignAt(data, time.Now())
}

// SignAt signs the data with a header that carries the given time.
func (k SecretKey) SignAt(data []byte, now time.Time) string {
	ts := now.UTC().Truncate(time.Second)
	return k.SignWithHeader(data, SignatureHeader{Timestamp: &ts})
}

// SignWithHeader signs the data with an explicit header. The result has the form
// "<signature>.<header>", both unpadded URL-safe base64.
func (k SecretKey) SignWithHeader(data []byte, header SignatureHeader) string {
	headerJSON, _ := json.Marshal(header)
	sig := ed25519.Sign(k.key, signedMessage(headerJSON, data))
	return keyEncoding.EncodeToString(sig) + "." + keyEncoding.EncodeToString(headerJSON)
}

// Pack serializes a value to JSON and signs it.
func (k SecretKey) Pack(v interface{}) ([]byte, string, error) {
	return k.PackAt(v, time.Now())
}

// PackAt is Pack with an explicit signing time.
func (k SecretKey) PackAt(v interface{}, now time.Time) ([]byte, string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	return data, k.SignAt(data, now), nil
}

// Verify returns true if the signature is valid for the data, regardless of its age.
func (k PublicKey) Verify(data []byte, signature string) bool {
	_, err := k.verifyMeta(data, signature)
	return err == nil
}

// VerifyTimestamp returns true if the signature is valid and no older than maxAge.
func (k PublicKey) VerifyTimestamp(data []byte, signature string, maxAge time.Duration) bool {
	return k.VerifyTimestampAt(data, signature, maxAge, time.Now())
}

// VerifyTimestampAt is VerifyTimestamp with the signature's age measured at now.
func (k PublicKey) VerifyTimestampAt(data []byte, signature string, maxAge time.Duration, now time.Time) bool {
	header, err := k.verifyMeta(data, signature)
	return err == nil && !header.Expired(maxAge, now)
}

// Unpack verifies a signed JSON payload and decodes it into v.
func (k PublicKey) Unpack(data []byte, signature string, maxAge time.Duration, v interface{}) error {
	return k.UnpackAt(data, signature, maxAge, time.Now(), v)
}

// UnpackAt is Unpack with the signature's age measured at now.
func (k PublicKey) UnpackAt(data []byte, signature string, maxAge time.Duration, now time.Time, v interface{}) error {
	header, err := k.verifyMeta(data, signature)
	if err != nil {
		return err
	}
	if header.Expired(maxAge, now) {
		return UnpackSignatureExpired
	}
	if err := json.Unmarshal(data, v); err != nil {
		return UnpackBadPayload
	}
	return nil
}

func (k PublicKey) verifyMeta(data []byte, signature string) (SignatureHeader, error) {
	var header SignatureHeader
	if !k.Defined() {
		return header, UnpackBadSignature
	}
	sigPart, headerPart, found := strings.Cut(signature, ".")
	if !found {
		return header, UnpackBadEncoding
	}
	sig, err := keyEncoding.DecodeString(sigPart)
	if err != nil {
		return header, UnpackBadEncoding
	}
	headerJSON, err := keyEncoding.DecodeString(headerPart)
	if err != nil {
		return header, UnpackBadEncoding
	}
	if !ed25519.Verify(k.key, signedMessage(headerJSON, data), sig) {
		return header, UnpackBadSignature
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return header, UnpackBadEncoding
	}
	return header, nil
}

func signedMessage(header, data []byte) []byte {
	msg := make([]byte, 0, len(header)+1+len(data))
	msg = append(msg, header...)
	msg = append(msg, 0)
	return append(msg, data...)
}
