// Package sharedtest provides helpers and fakes used by the tests of several relay packages.
//
// Non-test code should never import this package.
package sharedtest
