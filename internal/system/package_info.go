// Package system is the small service runtime Relay's components are built on: services consume
// typed messages from a channel, callers hold typed addresses, and a Controller coordinates
// process shutdown.
package system
