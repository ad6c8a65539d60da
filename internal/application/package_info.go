// Package application contains the startup helpers used by the relay command: command-line
// parsing and starting the HTTP listener.
package application
