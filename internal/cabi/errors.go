package cabi

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/eventrelay/relay/internal/credential"
)

// ErrorCode is the numeric error code reported to C callers.
type ErrorCode int32

// Error codes. The values are part of the C ABI and must not change.
const (
	CodeNoError                ErrorCode = 0
	CodePanic                  ErrorCode = 1
	CodeUnknown                ErrorCode = 2
	CodeInvalidJSON            ErrorCode = 101
	CodeKeyParseBadEncoding    ErrorCode = 1000
	CodeKeyParseBadKey         ErrorCode = 1001
	CodeUnpackBadSignature     ErrorCode = 1003
	CodeUnpackBadPayload       ErrorCode = 1004
	CodeUnpackSignatureExpired ErrorCode = 1005
	CodeUnpackBadEncoding      ErrorCode = 1006
	CodeUnsupported            ErrorCode = 4001
)

var errPIIUnsupported = errors.New("PII stripping is not supported by this build")

type lastError struct {
	code      ErrorCode
	message   string
	backtrace string
}

// The C library is called from arbitrary threads that Go cannot tell apart, so there is a single
// slot for the whole process rather than one per thread.
var (
	lastErrorLock     sync.Mutex //nolint:gochecknoglobals
	lastErrorState    lastError  //nolint:gochecknoglobals
	captureBacktraces bool       //nolint:gochecknoglobals
	initOnce          sync.Once  //nolint:gochecknoglobals
)

// Init prepares the library. After Init, panics also record a backtrace.
func Init() {
	initOnce.Do(func() {
		lastErrorLock.Lock()
		captureBacktraces = true
		lastErrorLock.Unlock()
	})
	ErrClear()
}

// ErrGetLastCode returns the code of the last error, or CodeNoError.
func ErrGetLastCode() ErrorCode {
	lastErrorLock.Lock()
	defer lastErrorLock.Unlock()
	return lastErrorState.code
}

// ErrGetLastMessage returns the message of the last error. It is empty if there was none.
func ErrGetLastMessage() Str {
	lastErrorLock.Lock()
	defer lastErrorLock.Unlock()
	return NewStr(lastErrorState.message)
}

// ErrGetBacktrace returns the stack of the last panic, if backtraces are enabled.
func ErrGetBacktrace() Str {
	lastErrorLock.Lock()
	defer lastErrorLock.Unlock()
	return NewStr(lastErrorState.backtrace)
}

// ErrClear clears the last error.
func ErrClear() {
	lastErrorLock.Lock()
	lastErrorState = lastError{}
	lastErrorLock.Unlock()
}

func setLastError(code ErrorCode, message, backtrace string) {
	lastErrorLock.Lock()
	lastErrorState = lastError{code: code, message: message, backtrace: backtrace}
	lastErrorLock.Unlock()
}

func errorCode(err error) ErrorCode {
	var keyErr credential.KeyParseError
	if errors.As(err, &keyErr) {
		if keyErr == credential.KeyParseBadEncoding {
			return CodeKeyParseBadEncoding
		}
		return CodeKeyParseBadKey
	}
	var unpackErr credential.UnpackError
	if errors.As(err, &unpackErr) {
		switch unpackErr {
		case credential.UnpackBadSignature:
			return CodeUnpackBadSignature
		case credential.UnpackBadPayload:
			return CodeUnpackBadPayload
		case credential.UnpackSignatureExpired:
			return CodeUnpackSignatureExpired
		default:
			return CodeUnpackBadEncoding
		}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return CodeInvalidJSON
	}
	if errors.Is(err, errPIIUnsupported) {
		return CodeUnsupported
	}
	return CodeUnknown
}

// call runs f with the last-error slot cleared, and records its error or panic there. On failure
// the zero value is returned.
func call[T any](f func() (T, error)) (result T) {
	ErrClear()
	defer func() {
		if p := recover(); p != nil {
			var zero T
			result = zero
			lastErrorLock.Lock()
			withStack := captureBacktraces
			lastErrorLock.Unlock()
			stack := ""
			if withStack {
				stack = string(debug.Stack())
			}
			setLastError(CodePanic, fmt.Sprintf("panic: %v", p), stack)
		}
	}()
	value, err := f()
	if err != nil {
		setLastError(errorCode(err), err.Error(), "")
		var zero T
		return zero
	}
	return value
}
