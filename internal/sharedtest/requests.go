package sharedtest

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
)

// BuildRequest is a simple shortcut for creating a request that may or may not have a body.
func BuildRequest(method, url string, body []byte, headers http.Header) *http.Request {
	var bodyBuffer io.Reader
	if body != nil {
		bodyBuffer = bytes.NewBuffer(body)
	}
	r, err := http.NewRequest(method, url, bodyBuffer)
	if err != nil {
		panic(err)
	}
	if headers != nil {
		r.Header = headers
	}
	return r
}

// BuildRequestWithAuth creates a request with an X-Sentry-Auth header for the public key.
func BuildRequestWithAuth(method, url, publicKey string, body []byte) *http.Request {
	h := make(http.Header)
	if publicKey != "" {
		h.Set("X-Sentry-Auth", "Sentry sentry_key="+publicKey+", sentry_version=7, sentry_client=test/1.0")
	}
	return BuildRequest(method, url, body, h)
}

// DoRequest is a shortcut for executing an endpoint handler against a request and getting the response.
func DoRequest(req *http.Request, handler http.Handler) (*http.Response, []byte) {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	result := w.Result()
	var body []byte
	if result.Body != nil {
		body, _ = io.ReadAll(result.Body)
		_ = result.Body.Close()
	}
	return result, body
}
