// Command librelay builds the relay C library:
//
//	go build -buildmode=c-shared -o librelay.so ./cmd/librelay
//
// Keys are passed to C as opaque handles that must be released with relay_publickey_free and
// relay_secretkey_free. Strings returned by the library are owned by the caller and must be
// released with relay_str_free.
package main

/*
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
	char *data;
	uintptr_t len;
	bool owned;
} RelayStr;

typedef struct {
	uint8_t *data;
	uintptr_t len;
	bool owned;
} RelayBuf;

typedef struct {
	uint8_t data[16];
} RelayUuid;

typedef uintptr_t RelayPublicKey;
typedef uintptr_t RelaySecretKey;

typedef struct {
	RelayPublicKey public_key;
	RelaySecretKey secret_key;
} RelayKeyPair;
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/eventrelay/relay/internal/cabi"
	"github.com/eventrelay/relay/internal/credential"
)

func main() {}

func goStr(s *C.RelayStr) cabi.Str {
	if s == nil || s.data == nil {
		return cabi.BorrowStr("")
	}
	return cabi.BorrowStr(C.GoStringN(s.data, C.int(s.len)))
}

func goBuf(b *C.RelayBuf) cabi.Buf {
	if b == nil || b.data == nil {
		return cabi.BorrowBuf(nil)
	}
	return cabi.BorrowBuf(C.GoBytes(unsafe.Pointer(b.data), C.int(b.len)))
}

func cStr(s cabi.Str) C.RelayStr {
	return C.RelayStr{
		data:  C.CString(s.Data),
		len:   C.uintptr_t(len(s.Data)),
		owned: C.bool(true),
	}
}

func publicKey(h C.RelayPublicKey) *credential.PublicKey {
	if h == 0 {
		return &credential.PublicKey{}
	}
	return cgo.Handle(h).Value().(*credential.PublicKey)
}

func secretKey(h C.RelaySecretKey) *credential.SecretKey {
	if h == 0 {
		return &credential.SecretKey{}
	}
	return cgo.Handle(h).Value().(*credential.SecretKey)
}

func newPublicKeyHandle(pk *credential.PublicKey) C.RelayPublicKey {
	if pk == nil {
		return 0
	}
	return C.RelayPublicKey(cgo.NewHandle(pk))
}

func newSecretKeyHandle(sk *credential.SecretKey) C.RelaySecretKey {
	if sk == nil {
		return 0
	}
	return C.RelaySecretKey(cgo.NewHandle(sk))
}

//export relay_init
func relay_init() {
	cabi.Init()
}

//export relay_err_get_last_code
func relay_err_get_last_code() C.int32_t {
	return C.int32_t(cabi.ErrGetLastCode())
}

//export relay_err_get_last_message
func relay_err_get_last_message() C.RelayStr {
	return cStr(cabi.ErrGetLastMessage())
}

//export relay_err_get_backtrace
func relay_err_get_backtrace() C.RelayStr {
	return cStr(cabi.ErrGetBacktrace())
}

//export relay_err_clear
func relay_err_clear() {
	cabi.ErrClear()
}

//export relay_str_from_cstr
func relay_str_from_cstr(s *C.char) C.RelayStr {
	return C.RelayStr{data: s, len: C.uintptr_t(C.strlen(s)), owned: C.bool(false)}
}

//export relay_str_free
func relay_str_free(s *C.RelayStr) {
	if s != nil && bool(s.owned) {
		C.free(unsafe.Pointer(s.data))
		*s = C.RelayStr{}
	}
}

//export relay_buf_free
func relay_buf_free(b *C.RelayBuf) {
	if b != nil && bool(b.owned) {
		C.free(unsafe.Pointer(b.data))
		*b = C.RelayBuf{}
	}
}

//export relay_publickey_parse
func relay_publickey_parse(s *C.RelayStr) C.RelayPublicKey {
	return newPublicKeyHandle(cabi.PublicKeyParse(goStr(s)))
}

//export relay_publickey_free
func relay_publickey_free(h C.RelayPublicKey) {
	if h != 0 {
		cgo.Handle(h).Delete()
	}
}

//export relay_publickey_to_string
func relay_publickey_to_string(h C.RelayPublicKey) C.RelayStr {
	return cStr(cabi.PublicKeyToString(publicKey(h)))
}

//export relay_publickey_verify
func relay_publickey_verify(h C.RelayPublicKey, data *C.RelayBuf, sig *C.RelayStr) C.bool {
	return C.bool(cabi.PublicKeyVerify(publicKey(h), goBuf(data), goStr(sig)))
}

//export relay_publickey_verify_timestamp
func relay_publickey_verify_timestamp(h C.RelayPublicKey, data *C.RelayBuf, sig *C.RelayStr, maxAge C.uint32_t) C.bool {
	return C.bool(cabi.PublicKeyVerifyTimestamp(publicKey(h), goBuf(data), goStr(sig), uint32(maxAge)))
}

//export relay_secretkey_parse
func relay_secretkey_parse(s *C.RelayStr) C.RelaySecretKey {
	return newSecretKeyHandle(cabi.SecretKeyParse(goStr(s)))
}

//export relay_secretkey_free
func relay_secretkey_free(h C.RelaySecretKey) {
	if h != 0 {
		cgo.Handle(h).Delete()
	}
}

//export relay_secretkey_to_string
func relay_secretkey_to_string(h C.RelaySecretKey) C.RelayStr {
	return cStr(cabi.SecretKeyToString(secretKey(h)))
}

//export relay_secretkey_sign
func relay_secretkey_sign(h C.RelaySecretKey, data *C.RelayBuf) C.RelayStr {
	return cStr(cabi.SecretKeySign(secretKey(h), goBuf(data)))
}

//export relay_generate_key_pair
func relay_generate_key_pair() C.RelayKeyPair {
	pair := cabi.GenerateKeyPair()
	return C.RelayKeyPair{
		public_key: newPublicKeyHandle(pair.Public),
		secret_key: newSecretKeyHandle(pair.Secret),
	}
}

//export relay_generate_relay_id
func relay_generate_relay_id() C.RelayUuid {
	return cUUID(cabi.GenerateRelayID())
}

//export relay_uuid_is_nil
func relay_uuid_is_nil(u *C.RelayUuid) C.bool {
	return C.bool(cabi.UUIDIsNil(goUUID(u)))
}

//export relay_uuid_to_str
func relay_uuid_to_str(u *C.RelayUuid) C.RelayStr {
	return cStr(cabi.UUIDToStr(goUUID(u)))
}

func cUUID(u cabi.UUID) C.RelayUuid {
	var out C.RelayUuid
	for i, b := range u {
		out.data[i] = C.uint8_t(b)
	}
	return out
}

func goUUID(u *C.RelayUuid) cabi.UUID {
	var out cabi.UUID
	if u != nil {
		for i := range out {
			out[i] = byte(u.data[i])
		}
	}
	return out
}

//export relay_create_register_challenge
func relay_create_register_challenge(
	data *C.RelayBuf,
	signature *C.RelayStr,
	secret C.RelaySecretKey,
	maxAge C.uint32_t,
) C.RelayStr {
	return cStr(cabi.CreateRegisterChallenge(goBuf(data), goStr(signature), secretKey(secret), uint32(maxAge)))
}

//export relay_validate_register_response
func relay_validate_register_response(
	data *C.RelayBuf,
	signature *C.RelayStr,
	secret C.RelaySecretKey,
	maxAge C.uint32_t,
) C.RelayStr {
	return cStr(cabi.ValidateRegisterResponse(goBuf(data), goStr(signature), secretKey(secret), uint32(maxAge)))
}

//export relay_version_supported
func relay_version_supported(version *C.RelayStr) C.bool {
	return C.bool(cabi.VersionSupported(goStr(version)))
}

//export relay_compare_versions
func relay_compare_versions(a, b *C.RelayStr) C.int32_t {
	return C.int32_t(cabi.CompareVersions(goStr(a), goStr(b)))
}

//export relay_data_category_name
func relay_data_category_name(category C.int32_t) C.RelayStr {
	return cStr(cabi.DataCategoryName(int32(category)))
}

//export relay_data_category_parse
func relay_data_category_parse(name *C.RelayStr) C.int32_t {
	return C.int32_t(cabi.DataCategoryParse(goStr(name)))
}

//export relay_data_category_from_event_type
func relay_data_category_from_event_type(eventType *C.RelayStr) C.int32_t {
	return C.int32_t(cabi.DataCategoryFromEventType(goStr(eventType)))
}

//export relay_is_glob_match
func relay_is_glob_match(value *C.RelayBuf, pattern *C.RelayStr, flags C.uint32_t) C.bool {
	return C.bool(cabi.IsGlobMatch(goBuf(value), goStr(pattern), cabi.GlobFlags(flags)))
}

//export relay_validate_project_config
func relay_validate_project_config(value *C.RelayStr, strict C.bool) C.RelayStr {
	return cStr(cabi.ValidateProjectConfig(goStr(value), bool(strict)))
}

//export relay_validate_sampling_configuration
func relay_validate_sampling_configuration(value *C.RelayStr) C.RelayStr {
	return cStr(cabi.ValidateSamplingConfiguration(goStr(value)))
}

//export relay_validate_sampling_condition
func relay_validate_sampling_condition(value *C.RelayStr) C.RelayStr {
	return cStr(cabi.ValidateSamplingCondition(goStr(value)))
}

//export relay_split_chunks
func relay_split_chunks(text, remarks *C.RelayStr) C.RelayStr {
	return cStr(cabi.SplitChunks(goStr(text), goStr(remarks)))
}

//export relay_pii_strip_event
func relay_pii_strip_event(config, event *C.RelayStr) C.RelayStr {
	return cStr(cabi.PIIStripEvent(goStr(config), goStr(event)))
}
