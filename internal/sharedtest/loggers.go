package sharedtest

import "github.com/launchdarkly/go-sdk-common/v3/ldlog"

// NullLoggers returns Loggers that discard all output.
func NullLoggers() ldlog.Loggers {
	return ldlog.NewDisabledLoggers()
}
