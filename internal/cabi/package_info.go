// Package cabi is the Go side of the relay C library. Every function mirrors one exported C
// symbol: arguments and results are plain values, strings travel as Str or Buf, and failures are
// reported through a last-error slot instead of Go errors, since C callers cannot receive them.
//
// The cgo wrappers live in cmd/librelay.
package cabi
