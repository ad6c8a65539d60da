package relay

import (
	"errors"
	"fmt"
)

var (
	errMissingCredentials = errors.New("managed mode requires credentials; run \"relay credentials generate\" first")
	errNoConfigDir        = errors.New("static mode requires a configuration directory")
)

func errNewMetricsManagerFailed(err error) error {
	return fmt.Errorf("unable to create metrics manager: %w", err)
}

func errHTTPConfigFailed(err error) error {
	return fmt.Errorf("invalid HTTP or proxy configuration: %w", err)
}

func errStoreFailed(err error) error {
	return fmt.Errorf("unable to create persistent project store: %w", err)
}

func errStaticProjectsFailed(err error) error {
	return fmt.Errorf("unable to load static project configs: %w", err)
}

func errRedisFailed(err error) error {
	return fmt.Errorf("unable to create Redis client for quotas: %w", err)
}

func errBadStaticRelay(id string, err error) error {
	return fmt.Errorf("static relay %q has an invalid public key: %w", id, err)
}

const (
	logMsgRunning            = "Relay %s running in %s mode, upstream %s"
	logMsgShutdownIncomplete = "Shutdown did not complete cleanly: %s"
	logMsgForwardFailed      = "Failed to forward %s %s to upstream: %s"
	logMsgRegistered         = "Relay %s registered (internal: %t)"
	logMsgRegisterRejected   = "Rejected registration: %s"
)
