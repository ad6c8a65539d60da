// Package version contains the current version of Relay.
package version

// Version is the package version. It is updated by the release process.
const Version = "23.10.1"
