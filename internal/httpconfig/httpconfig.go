// Package httpconfig builds the HTTP client that Relay uses for all outbound requests to its upstream.
package httpconfig

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/util"
	"github.com/eventrelay/relay/relay/version"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	// DefaultTimeout is the total request timeout used if none is configured.
	DefaultTimeout = 5 * time.Second

	// DefaultConnectionTimeout is the connect timeout used if none is configured.
	DefaultConnectionTimeout = 3 * time.Second
)

var errProxyAuthWithoutProxyURL = errors.New("cannot specify proxy authentication without a proxy URL")

func errInvalidCACertFile(path string, err error) error {
	return fmt.Errorf("invalid CA certificate data in %s: %w", path, err)
}

// HTTPConfig encapsulates ProxyConfig plus the timeouts from the [HTTP] section.
type HTTPConfig struct {
	config.ProxyConfig
	ProxyURL          *url.URL
	UserAgent         string
	Timeout           time.Duration
	ConnectionTimeout time.Duration
	transport         *http.Transport
}

// NewHTTPConfig validates all of the HTTP-related options and returns an HTTPConfig if successful.
func NewHTTPConfig(proxyConfig config.ProxyConfig, httpConfig config.HTTPConfig, loggers ldlog.Loggers) (HTTPConfig, error) {
	ret := HTTPConfig{
		ProxyConfig:       proxyConfig,
		UserAgent:         "EventRelay/" + version.Version,
		Timeout:           httpConfig.Timeout.GetOrElse(DefaultTimeout),
		ConnectionTimeout: httpConfig.ConnectionTimeout.GetOrElse(DefaultConnectionTimeout),
	}

	if !proxyConfig.URL.IsDefined() && (proxyConfig.User != "" || proxyConfig.Password != "") {
		return ret, errProxyAuthWithoutProxyURL
	}

	transport := cleanhttp.DefaultPooledTransport()
	transport.DialContext = (&net.Dialer{
		Timeout:   ret.ConnectionTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	if proxyConfig.URL.IsDefined() {
		u := *proxyConfig.URL.Get()
		loggers.Infof("Using proxy server at %s", util.RedactURL(u.String()))
		if proxyConfig.User != "" {
			u.User = url.UserPassword(proxyConfig.User, proxyConfig.Password)
		}
		ret.ProxyURL = &u
		transport.Proxy = http.ProxyURL(&u)
	}

	if files := proxyConfig.CACertFiles.Values(); len(files) != 0 {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		for _, path := range files {
			data, err := os.ReadFile(path) //nolint:gosec
			if err != nil {
				return ret, errInvalidCACertFile(path, err)
			}
			if !pool.AppendCertsFromPEM(data) {
				return ret, errInvalidCACertFile(path, errors.New("no certificates found"))
			}
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	ret.transport = transport
	return ret, nil
}

// Transport returns the shared round tripper. Callers that wrap it (for instance in a caching
// transport) still reuse its connection pool.
func (c HTTPConfig) Transport() http.RoundTripper {
	if c.transport == nil {
		return cleanhttp.DefaultPooledTransport()
	}
	return c.transport
}

// Client creates a new HTTP client instance with the configured timeout.
func (c HTTPConfig) Client() *http.Client {
	return &http.Client{Transport: c.Transport(), Timeout: c.Timeout}
}

// NewRequest creates a request with the standard Relay headers.
func (c HTTPConfig) NewRequest(method, target string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	return req, nil
}
