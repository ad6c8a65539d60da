// Package upstream is Relay's client for the service it forwards to. It performs the register
// handshake that authenticates the relay, signs requests with the relay's secret key, and turns
// rate-limit responses into quotas.RateLimits.
package upstream
