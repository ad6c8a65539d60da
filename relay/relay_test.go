package relay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/processing"
	"github.com/eventrelay/relay/internal/processor"
	"github.com/eventrelay/relay/internal/quotas"
	st "github.com/eventrelay/relay/internal/sharedtest"

	ct "github.com/launchdarkly/go-configtypes"
)

func TestManagedModeRequiresCredentials(t *testing.T) {
	c := config.DefaultConfig
	c.Relay.Mode = config.RelayModeManaged
	c.Relay.ConfigDir = st.ConfigDir(t)
	r, err := newRelayInternal(c, relayInternalOptions{loggers: st.NullLoggers()})
	assert.Nil(t, r)
	assert.Equal(t, errMissingCredentials, err)
}

func TestStaticModeRequiresConfigDir(t *testing.T) {
	c := config.DefaultConfig
	c.Relay.Mode = config.RelayModeStatic
	r, err := newRelayInternal(c, relayInternalOptions{loggers: st.NullLoggers()})
	assert.Nil(t, r)
	assert.Equal(t, errNoConfigDir, err)
}

func TestNewRelayRejectsInvalidConfig(t *testing.T) {
	c := config.DefaultConfig
	c.Relay.Mode = config.RelayModeCapture
	c.Relay.TLSEnabled = true
	_, err := newRelayInternal(c, relayInternalOptions{loggers: st.NullLoggers()})
	assert.Error(t, err)
}

func TestManagedModeRegistersAndForwards(t *testing.T) {
	creds := config.GenerateCredentials()
	relayTest(t, config.RelayModeManaged, nil, relayInternalOptions{credentials: &creds}, func(p testParams) {
		p.upstream.SetProjectState(testProjectKey, makeProjectState(""))
		require.Eventually(t, func() bool { return p.upstream.IsRegistered(creds.ID) }, waitTimeout, waitInterval)

		resp, body := doRequest(p.relay, st.BuildRequestWithAuth("POST", envelopeURL, testProjectKey, makeEnvelope(testEventID)))
		require.Equal(t, 200, resp.StatusCode, string(body))
		assert.JSONEq(t, `{"id":"`+testEventID+`"}`, string(body))

		require.Eventually(t, func() bool { return len(p.upstream.Envelopes()) == 1 }, waitTimeout, waitInterval)
		assert.Contains(t, string(p.upstream.Envelopes()[0]), "hello")
		require.NotEmpty(t, p.upstream.ProjectRequests())
		assert.Equal(t, []string{testProjectKey}, p.upstream.ProjectRequests()[0])
	})
}

func TestManagedModeReportsMissingProjects(t *testing.T) {
	creds := config.GenerateCredentials()
	relayTest(t, config.RelayModeManaged, nil, relayInternalOptions{credentials: &creds}, func(p testParams) {
		p.upstream.SetProjectState(testProjectKey, nil)

		resp, _ := doRequest(p.relay, st.BuildRequestWithAuth("POST", envelopeURL, testProjectKey, makeEnvelope(testEventID)))
		assert.Equal(t, 403, resp.StatusCode)
		assert.Len(t, p.upstream.Envelopes(), 0)
	})
}

func TestProcessingModeProducesToKafka(t *testing.T) {
	producer := &st.CapturingProducer{}
	configure := func(c *config.Config) {
		st.WriteStaticProject(t, c.Relay.ConfigDir, testProjectKey, makeProjectState(""))
		c.Processing.Enabled = true
		c.Processing.KafkaBrokers = ct.NewOptStringList([]string{"localhost:9092"})
		c.Redis.URL, _ = ct.NewOptURLAbsoluteFromString("redis://localhost:6379")
	}
	options := relayInternalOptions{producer: producer, rateLimiter: quotas.NewInMemoryRateLimiter(nil)}
	relayTest(t, config.RelayModeStatic, configure, options, func(p testParams) {
		resp, body := doRequest(p.relay, st.BuildRequestWithAuth("POST", envelopeURL, testProjectKey, makeEnvelope(testEventID)))
		require.Equal(t, 200, resp.StatusCode, string(body))

		require.Eventually(t, func() bool {
			return len(producer.Messages(processing.TopicEvents)) == 1
		}, waitTimeout, waitInterval)
		assert.Len(t, p.upstream.Envelopes(), 0)
	})
}

func TestCloseDeliversOutcomesAndBucketsStillInFlight(t *testing.T) {
	producer := &st.CapturingProducer{}
	configure := func(c *config.Config) {
		st.WriteStaticProject(t, c.Relay.ConfigDir, testProjectKey, makeProjectState(""))
		c.Processing.Enabled = true
		c.Processing.KafkaBrokers = ct.NewOptStringList([]string{"localhost:9092"})
		c.Redis.URL, _ = ct.NewOptURLAbsoluteFromString("redis://localhost:6379")
		// Nothing is flushed on a timer during the test, so only shutdown can deliver these.
		c.Outcomes.AggregatorFlushInterval = ct.NewOptDuration(time.Hour)
		c.Outcomes.BatchInterval = ct.NewOptDuration(time.Hour)
		c.Aggregator.FlushInterval = ct.NewOptDuration(time.Hour)
	}
	options := relayInternalOptions{producer: producer, rateLimiter: quotas.NewInMemoryRateLimiter(nil)}
	relayTest(t, config.RelayModeStatic, configure, options, func(p testParams) {
		envelope := []byte(`{"event_id":"` + testEventID + `"}` + "\n" +
			`{"type":"client_report"}` + "\n" +
			`{"rate_limited_events":[{"reason":"queue_overflow","category":"error","quantity":3}]}` + "\n" +
			`{"type":"statsd"}` + "\n" +
			`shutdown_counter:1|c` + "\n")
		resp, body := doRequest(p.relay, st.BuildRequestWithAuth("POST", envelopeURL, testProjectKey, envelope))
		require.Equal(t, 200, resp.StatusCode, string(body))

		require.NoError(t, p.relay.Close())

		outcomeMessages := producer.Messages(processing.TopicOutcomes)
		require.Len(t, outcomeMessages, 1)
		assert.Contains(t, string(outcomeMessages[0].Value), `"reason":"queue_overflow"`)
		assert.Contains(t, string(outcomeMessages[0].Value), `"quantity":3`)

		metricMessages := producer.Messages(processing.TopicMetrics)
		require.Len(t, metricMessages, 1)
		var metricMessage processor.KafkaMessage
		require.NoError(t, json.Unmarshal(metricMessages[0].Value, &metricMessage))
		assert.Contains(t, string(metricMessage.Payload), "shutdown_counter")
		assert.True(t, producer.IsClosed())
	})
}

func TestCloseIsIdempotent(t *testing.T) {
	relayTest(t, config.RelayModeCapture, nil, relayInternalOptions{}, func(p testParams) {
		assert.NoError(t, p.relay.Close())
		assert.NoError(t, p.relay.Close())

		resp, _ := doRequest(p.relay, st.BuildRequestWithAuth("POST", envelopeURL, testProjectKey, makeEnvelope(testEventID)))
		assert.Equal(t, 503, resp.StatusCode)
	})
}

func TestStaticRelayWithBadKeyIsRejected(t *testing.T) {
	c := config.DefaultConfig
	c.Relay.Mode = config.RelayModeCapture
	c.StaticRelay = map[string]*config.StaticRelayConfig{
		"0f6a7f1c-3a8e-4b5e-9b1e-6b1f1d1e2a3b": {PublicKey: "not-a-key"},
	}
	_, err := newRelayInternal(c, relayInternalOptions{loggers: st.NullLoggers()})
	assert.Error(t, err)
}
