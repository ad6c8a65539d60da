// Package logging contains the log setup shared by the relay command and its HTTP handlers.
package logging
