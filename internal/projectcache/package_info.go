// Package projectcache keeps the project states that Relay needs to accept and process envelopes.
//
// States come from a Source: the upstream's project config endpoint for managed relays, files in
// the config directory for static relays, or a permissive default for proxy relays. An optional
// persistent Store (Redis, DynamoDB or Consul) is consulted before the source and updated after
// every successful fetch. The Cache in front of both serves stale states during a grace period
// while it refreshes them in the background.
package projectcache
