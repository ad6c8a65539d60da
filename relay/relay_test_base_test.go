package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventrelay/relay/config"
	st "github.com/eventrelay/relay/internal/sharedtest"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
)

const (
	testProjectKey = "a94ae32be2584e0bbd7a4cbb95971fee"
	testProjectID  = 42
	testEventID    = "9ec79c33ec9942ab8353589fcb2e04dc"

	envelopeURL = "http://localhost/api/42/envelope/"
	storeURL    = "http://localhost/api/42/store/"

	waitTimeout  = 5 * time.Second
	waitInterval = 10 * time.Millisecond
)

type testParams struct {
	relay     *Relay
	upstream  *st.FakeUpstream
	server    *httptest.Server
	mockLog   *ldlogtest.MockLog
	configDir string
}

// makeProjectState returns the JSON state of the test project, optionally with extra config
// properties.
func makeProjectState(extraConfig string) json.RawMessage {
	cfg := `"allowedDomains":["*"]`
	if extraConfig != "" {
		cfg += "," + extraConfig
	}
	return json.RawMessage(fmt.Sprintf(
		`{"projectId":%d,"disabled":false,"slug":"test","organizationId":1,`+
			`"publicKeys":[{"publicKey":"%s","numericId":7}],"config":{%s}}`,
		testProjectID, testProjectKey, cfg))
}

func makeEnvelope(eventID string) []byte {
	return []byte(`{"event_id":"` + eventID + `"}` + "\n" +
		`{"type":"event"}` + "\n" +
		`{"message":"hello"}` + "\n")
}

// relayTest creates a Relay in front of a fake upstream, calls the action, and closes both. The
// configure function can modify the configuration; its ConfigDir is a fresh temporary directory.
func relayTest(
	t *testing.T,
	mode config.RelayMode,
	configure func(c *config.Config),
	options relayInternalOptions,
	action func(p testParams),
) {
	fake := st.NewFakeUpstream()
	server := httptest.NewServer(fake.Handler())
	defer server.Close()

	configDir := st.ConfigDir(t)
	upstreamURL, err := config.ParseUpstreamDescriptor(server.URL)
	require.NoError(t, err)

	c := config.DefaultConfig
	c.Relay.Mode = mode
	c.Relay.Upstream = upstreamURL
	c.Relay.ConfigDir = configDir
	if configure != nil {
		configure(&c)
	}

	mockLog := ldlogtest.NewMockLog()
	defer mockLog.DumpIfTestFailed(t)
	options.loggers = mockLog.Loggers
	options.loggers.SetMinLevel(ldlog.Debug)

	r, err := newRelayInternal(c, options)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	action(testParams{relay: r, upstream: fake, server: server, mockLog: mockLog, configDir: configDir})
}

func doRequest(r *Relay, req *http.Request) (*http.Response, []byte) {
	return st.DoRequest(req, r)
}
