// Package middleware contains the request handling that the relay's endpoints share:
// authentication, body decoding, CORS, error responses and request metrics.
package middleware
