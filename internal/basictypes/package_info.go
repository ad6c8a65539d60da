// Package basictypes contains types and constants that are used by multiple Relay packages
// and have little or no logic of their own: data categories, event types, project keys,
// timestamps, metric units, span statuses, and glob patterns.
//
// Putting such things here, instead of in one of the packages that use them, allows us to
// reference them in shared test code as well without causing import cycles if those other
// packages also use the shared test code. It also provides a convenient way to see basic
// characteristics of Relay's internal model.
package basictypes
