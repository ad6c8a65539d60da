package application

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/eventrelay/relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const readHeaderTimeout = 10 * time.Second

// ServerErrorKind describes why the HTTP server could not run.
type ServerErrorKind string

const (
	// ServerErrorBind means the listening address could not be bound.
	ServerErrorBind ServerErrorKind = "bind"
	// ServerErrorTLS means the TLS certificate or key could not be loaded.
	ServerErrorTLS ServerErrorKind = "tls"
	// ServerErrorServe means the server stopped because of an error after it started.
	ServerErrorServe ServerErrorKind = "serve"
)

// ServerError is sent on the error channel of StartHTTPServer.
type ServerError struct {
	Kind ServerErrorKind
	Addr string
	Err  error
}

func (e ServerError) Error() string {
	switch e.Kind {
	case ServerErrorBind:
		return fmt.Sprintf("failed to bind to %s: %s", e.Addr, e.Err)
	case ServerErrorTLS:
		return fmt.Sprintf("failed to configure TLS: %s", e.Err)
	default:
		return fmt.Sprintf("HTTP server on %s failed: %s", e.Addr, e.Err)
	}
}

func (e ServerError) Unwrap() error { return e.Err }

// ServerConfig is where and how the server listens.
type ServerConfig struct {
	Host          string
	Port          int
	TLSEnabled    bool
	TLSCertFile   string
	TLSKeyFile    string
	TLSMinVersion uint16
}

// ServerConfigFromRelayConfig extracts the listener settings from the Relay configuration.
func ServerConfigFromRelayConfig(c config.RelayConfig) ServerConfig {
	return ServerConfig{
		Host:          c.Host,
		Port:          c.Port.GetOrElse(config.DefaultPort),
		TLSEnabled:    c.TLSEnabled,
		TLSCertFile:   c.TLSCert,
		TLSKeyFile:    c.TLSKey,
		TLSMinVersion: c.TLSMinVersion.Get(),
	}
}

// Addr returns the host:port to listen on.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// StartHTTPServer binds the listening socket and serves on a separate goroutine. Failing to bind
// or to load the TLS key pair is reported synchronously; later failures are sent to the error
// channel. The channel is not written to after Shutdown or Close.
func StartHTTPServer(
	sc ServerConfig,
	handler http.Handler,
	loggers ldlog.Loggers,
) (*http.Server, <-chan error, error) {
	addr := sc.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if sc.TLSEnabled {
		cert, err := tls.LoadX509KeyPair(sc.TLSCertFile, sc.TLSKeyFile)
		if err != nil {
			return nil, nil, ServerError{Kind: ServerErrorTLS, Addr: addr, Err: err}
		}
		srv.TLSConfig = &tls.Config{ //nolint:gosec // MinVersion comes from configuration
			Certificates: []tls.Certificate{cert},
			MinVersion:   sc.TLSMinVersion,
		}
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, ServerError{Kind: ServerErrorBind, Addr: addr, Err: err}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		loggers.Infof("Starting server listening on %s", listener.Addr())
		if sc.TLSEnabled {
			message := "TLS enabled for server"
			if sc.TLSMinVersion != 0 {
				message += fmt.Sprintf(" (minimum TLS version: %s)", config.NewOptTLSVersion(sc.TLSMinVersion).String())
			}
			loggers.Info(message)
			err = srv.ServeTLS(listener, "", "")
		} else {
			err = srv.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- ServerError{Kind: ServerErrorServe, Addr: addr, Err: err}
		}
	}()

	return srv, errCh, nil
}
