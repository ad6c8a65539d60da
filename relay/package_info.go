// Package relay contains the relay service: the HTTP endpoints that SDKs and downstream relays
// talk to, and the wiring of project states, envelope processing, metrics aggregation and
// outcomes behind them.
//
// A Relay is an http.Handler, so it can be mounted in another server; cmd/relay runs it as a
// standalone process.
package relay
