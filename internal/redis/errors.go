package redis

import (
	"fmt"
)

// RedisError wraps a Redis configuration or connection failure.
type RedisError struct { //nolint:revive
	Kind string
	Err  error
}

func (e RedisError) Error() string {
	if e.Err == nil {
		return "redis " + e.Kind
	}
	return fmt.Sprintf("redis %s: %s", e.Kind, e.Err)
}

func (e RedisError) Unwrap() error { return e.Err }

func errNotConfigured() error {
	return RedisError{Kind: "not configured"}
}

func errBadURL(err error) error {
	return RedisError{Kind: "configuration error", Err: err}
}

func errConnection(err error) error {
	return RedisError{Kind: "connection error", Err: err}
}
