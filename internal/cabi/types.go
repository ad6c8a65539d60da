package cabi

import (
	"github.com/pborman/uuid"

	"github.com/eventrelay/relay/internal/credential"
)

// Str is a string passed across the C boundary. An owned Str was allocated by the library and
// must be released with StrFree; a borrowed one points at caller memory.
type Str struct {
	Data  string
	Owned bool
}

// NewStr returns an owned Str.
func NewStr(s string) Str {
	return Str{Data: s, Owned: true}
}

// BorrowStr wraps a caller-owned string.
func BorrowStr(s string) Str {
	return Str{Data: s}
}

func (s Str) String() string { return s.Data }

// StrFree releases an owned Str. Freeing a borrowed or already freed Str does nothing.
func StrFree(s *Str) {
	if s != nil && s.Owned {
		*s = Str{}
	}
}

// Buf is a byte buffer passed across the C boundary.
type Buf struct {
	Data  []byte
	Owned bool
}

// BorrowBuf wraps caller-owned bytes.
func BorrowBuf(data []byte) Buf {
	return Buf{Data: data}
}

// BufFree releases an owned Buf.
func BufFree(b *Buf) {
	if b != nil && b.Owned {
		*b = Buf{}
	}
}

// UUID is the binary form of a relay ID.
type UUID [16]byte

// KeyPair is the result of GenerateKeyPair.
type KeyPair struct {
	Public *credential.PublicKey
	Secret *credential.SecretKey
}

func uuidFromRelayID(id credential.RelayID) UUID {
	var out UUID
	copy(out[:], uuid.Parse(id.String()))
	return out
}

// UUIDIsNil returns true if all bytes of the UUID are zero.
func UUIDIsNil(u UUID) bool {
	return u == UUID{}
}

// UUIDToStr formats a UUID in its hyphenated form.
func UUIDToStr(u UUID) Str {
	return NewStr(uuid.UUID(u[:]).String())
}
