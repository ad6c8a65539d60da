package sharedtest

import (
	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/httpconfig"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// MakeBasicHTTPConfig returns an HTTP configuration without proxy or custom timeouts.
func MakeBasicHTTPConfig() httpconfig.HTTPConfig {
	ret, err := httpconfig.NewHTTPConfig(config.ProxyConfig{}, config.HTTPConfig{}, ldlog.NewDisabledLoggers())
	if err != nil {
		panic(err)
	}
	return ret
}
