// Package protocol contains the data formats that SDKs send to Relay: envelopes and their items,
// the X-Sentry-Auth header, DSNs, and a generic JSON value tree with path-based access that is
// used to extract metrics from spans.
package protocol
