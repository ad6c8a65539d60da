package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestStartHTTPServer(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	port := freePort(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv, errCh, err := StartHTTPServer(ServerConfig{Host: "127.0.0.1", Port: port}, handler, mockLog.Loggers)
	require.NoError(t, err)
	defer srv.Close() //nolint:errcheck

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", port))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Len(t, errCh, 0)
	mockLog.AssertMessageMatch(t, true, ldlog.Info, "Starting server listening on 127.0.0.1")
}

func TestStartHTTPServerBindError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close() //nolint:errcheck
	port := l.Addr().(*net.TCPAddr).Port

	_, _, err = StartHTTPServer(ServerConfig{Host: "127.0.0.1", Port: port}, http.NotFoundHandler(),
		ldlog.NewDisabledLoggers())
	var se ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ServerErrorBind, se.Kind)
}

func TestStartHTTPServerTLSError(t *testing.T) {
	_, _, err := StartHTTPServer(ServerConfig{
		Host: "127.0.0.1", Port: freePort(t), TLSEnabled: true,
		TLSCertFile: "/nonexistent/cert.pem", TLSKeyFile: "/nonexistent/key.pem",
	}, http.NotFoundHandler(), ldlog.NewDisabledLoggers())
	var se ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ServerErrorTLS, se.Kind)
	assert.Contains(t, se.Error(), "failed to configure TLS")
}
