// Package dynconfig contains the per-project configuration that Relay receives from its upstream,
// along with the defaults that Relay adds to it.
package dynconfig
