package config

import (
	"crypto/tls"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eventrelay/relay/internal/credential"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
)

type testDataValidConfig struct {
	name        string
	makeConfig  func(c *Config)
	envVars     map[string]string
	fileContent string
	warnings    []string
}

func (tdc testDataValidConfig) assertResult(t *testing.T, actualConfig Config, mockLog *ldlogtest.MockLog) {
	var expectedConfig Config
	tdc.makeConfig(&expectedConfig)
	assert.Equal(t, expectedConfig, actualConfig)
	for _, message := range tdc.warnings {
		mockLog.AssertMessageMatch(t, true, ldlog.Warn, regexp.QuoteMeta(message))
	}
}

func mustOptIntGreaterThanZero(n int) ct.OptIntGreaterThanZero {
	o, err := ct.NewOptIntGreaterThanZero(n)
	if err != nil {
		panic(err)
	}
	return o
}

func makeValidConfigs() []testDataValidConfig {
	return []testDataValidConfig{
		makeValidConfigAllBaseProperties(),
		makeValidConfigLimits(),
		makeValidConfigCacheAndAggregator(),
		makeValidConfigOutcomes(),
		makeValidConfigRedisMinimal(),
		makeValidConfigRedisHostAndPort(),
		makeValidConfigRedisURL(),
		makeValidConfigRedisDockerPort(),
		makeValidConfigRedisAsStore(),
		makeValidConfigConsulMinimal(),
		makeValidConfigDynamoDBMinimal(),
		makeValidConfigDynamoDBAll(),
		makeValidConfigProcessing(),
		makeValidConfigStaticRelay(),
		makeValidConfigDatadogAll(),
		makeValidConfigStackdriverAll(),
		makeValidConfigPrometheusAll(),
		makeValidConfigProxy(),
	}
}

func makeValidConfigAllBaseProperties() testDataValidConfig {
	c := testDataValidConfig{name: "all base properties"}
	c.makeConfig = func(c *Config) {
		c.Relay = RelayConfig{
			Mode:               RelayModeStatic,
			Upstream:           mustParseUpstreamDescriptor("http://upstream:8080"),
			Host:               "0.0.0.0",
			Port:               mustOptIntGreaterThanZero(8333),
			TLSEnabled:         true,
			TLSCert:            "cert",
			TLSKey:             "key",
			TLSMinVersion:      NewOptTLSVersion(tls.VersionTLS12),
			OverrideProjectIDs: true,
			ExitOnError:        true,
		}
		c.HTTP = HTTPConfig{
			Timeout:                ct.NewOptDuration(5 * time.Second),
			AuthRetryInterval:      ct.NewOptDuration(time.Minute),
			Encoding:               HTTPEncodingZstd,
			ForwardUnknownRequests: ct.NewOptBool(false),
		}
		c.Auth = AuthConfig{
			ReadyRequiresAuth: true,
			SignatureMaxAge:   ct.NewOptDuration(2 * time.Minute),
		}
		c.Logging.Level = NewOptLogLevel(ldlog.Warn)
	}
	c.envVars = map[string]string{
		"RELAY_MODE":               "static",
		"RELAY_UPSTREAM":           "http://upstream:8080",
		"RELAY_HOST":               "0.0.0.0",
		"RELAY_PORT":               "8333",
		"TLS_ENABLED":              "1",
		"TLS_CERT":                 "cert",
		"TLS_KEY":                  "key",
		"TLS_MIN_VERSION":          "1.2",
		"OVERRIDE_PROJECT_IDS":     "1",
		"EXIT_ON_ERROR":            "1",
		"HTTP_TIMEOUT":             "5s",
		"HTTP_AUTH_RETRY_INTERVAL": "1m",
		"HTTP_ENCODING":            "zstd",
		"HTTP_FORWARD":             "false",
		"AUTH_READY":               "1",
		"AUTH_SIGNATURE_MAX_AGE":   "2m",
		"LOG_LEVEL":                "warn",
	}
	c.fileContent = `
[Relay]
Mode = static
Upstream = "http://upstream:8080"
Host = "0.0.0.0"
Port = 8333
TLSEnabled = 1
TLSCert = "cert"
TLSKey = "key"
TLSMinVersion = "1.2"
OverrideProjectIDs = 1
ExitOnError = 1

[HTTP]
Timeout = 5s
AuthRetryInterval = 1m
Encoding = zstd
ForwardUnknownRequests = false

[Auth]
ReadyRequiresAuth = true
SignatureMaxAge = 2m

[Logging]
Level = "warn"
`
	return c
}

func makeValidConfigLimits() testDataValidConfig {
	c := testDataValidConfig{name: "limits"}
	c.makeConfig = func(c *Config) {
		c.Limits = LimitsConfig{
			MaxEnvelopeSize:       NewOptByteSize(100 * 1000 * 1000),
			MaxEventSize:          NewOptByteSize(1 << 20),
			MaxAttachmentSize:     NewOptByteSize(512),
			MaxConcurrentRequests: mustOptIntGreaterThanZero(50),
			ShutdownTimeout:       ct.NewOptDuration(20 * time.Second),
		}
	}
	c.envVars = map[string]string{
		"LIMITS_MAX_ENVELOPE_SIZE":       "100MB",
		"LIMITS_MAX_EVENT_SIZE":          "1MiB",
		"LIMITS_MAX_ATTACHMENT_SIZE":     "512",
		"LIMITS_MAX_CONCURRENT_REQUESTS": "50",
		"LIMITS_SHUTDOWN_TIMEOUT":        "20s",
	}
	c.fileContent = `
[Limits]
MaxEnvelopeSize = 100MB
MaxEventSize = 1MiB
MaxAttachmentSize = 512
MaxConcurrentRequests = 50
ShutdownTimeout = 20s
`
	return c
}

func makeValidConfigCacheAndAggregator() testDataValidConfig {
	c := testDataValidConfig{name: "cache and aggregator"}
	c.makeConfig = func(c *Config) {
		c.Cache = CacheConfig{
			ProjectExpiry:      ct.NewOptDuration(10 * time.Minute),
			ProjectGracePeriod: ct.NewOptDuration(30 * time.Second),
			BatchSize:          mustOptIntGreaterThanZero(100),
			Capacity:           mustOptIntGreaterThanZero(5000),
		}
		c.Aggregator = AggregatorConfig{
			BucketInterval:  ct.NewOptDuration(time.Minute),
			FlushPartitions: mustOptIntGreaterThanZero(8),
			MaxNameLength:   mustOptIntGreaterThanZero(150),
		}
	}
	c.envVars = map[string]string{
		"CACHE_PROJECT_EXPIRY":        "10m",
		"CACHE_PROJECT_GRACE_PERIOD":  "30s",
		"CACHE_BATCH_SIZE":            "100",
		"CACHE_CAPACITY":              "5000",
		"AGGREGATOR_BUCKET_INTERVAL":  "1m",
		"AGGREGATOR_FLUSH_PARTITIONS": "8",
		"AGGREGATOR_MAX_NAME_LENGTH":  "150",
	}
	c.fileContent = `
[Cache]
ProjectExpiry = 10m
ProjectGracePeriod = 30s
BatchSize = 100
Capacity = 5000

[Aggregator]
BucketInterval = 1m
FlushPartitions = 8
MaxNameLength = 150
`
	return c
}

func makeValidConfigOutcomes() testDataValidConfig {
	c := testDataValidConfig{name: "outcomes"}
	c.makeConfig = func(c *Config) {
		c.Outcomes = OutcomesConfig{
			Emit:               true,
			EmitClientOutcomes: true,
			BatchSize:          mustOptIntGreaterThanZero(500),
			BatchInterval:      ct.NewOptDuration(2 * time.Second),
			Source:             "edge-1",
		}
	}
	c.envVars = map[string]string{
		"OUTCOMES_EMIT":           "true",
		"OUTCOMES_EMIT_CLIENT":    "true",
		"OUTCOMES_BATCH_SIZE":     "500",
		"OUTCOMES_BATCH_INTERVAL": "2s",
		"OUTCOMES_SOURCE":         "edge-1",
	}
	c.fileContent = `
[Outcomes]
Emit = true
EmitClientOutcomes = true
BatchSize = 500
BatchInterval = 2s
Source = "edge-1"
`
	return c
}

func makeValidConfigRedisMinimal() testDataValidConfig {
	c := testDataValidConfig{name: "Redis - minimal parameters"}
	c.makeConfig = func(c *Config) {
		c.Redis = RedisConfig{
			URL: newOptURLAbsoluteMustBeValid("redis://localhost:6379"),
		}
	}
	c.envVars = map[string]string{
		"USE_REDIS": "1",
	}
	c.fileContent = `
[Redis]
Host = "localhost"
`
	return c
}

func makeValidConfigRedisHostAndPort() testDataValidConfig {
	c := testDataValidConfig{name: "Redis - host and port"}
	c.makeConfig = func(c *Config) {
		c.Redis = RedisConfig{
			URL:      newOptURLAbsoluteMustBeValid("redis://redishost:3333"),
			TLS:      true,
			Password: "pass",
			Prefix:   "relay",
		}
	}
	c.envVars = map[string]string{
		"USE_REDIS":      "1",
		"REDIS_HOST":     "redishost",
		"REDIS_PORT":     "3333",
		"REDIS_TLS":      "1",
		"REDIS_PASSWORD": "pass",
		"REDIS_PREFIX":   "relay",
	}
	c.fileContent = `
[Redis]
Host = "redishost"
Port = 3333
TLS = 1
Password = "pass"
Prefix = "relay"
`
	return c
}

func makeValidConfigRedisURL() testDataValidConfig {
	c := testDataValidConfig{name: "Redis - URL"}
	c.makeConfig = func(c *Config) {
		c.Redis = RedisConfig{
			URL: newOptURLAbsoluteMustBeValid("rediss://redishost:3333"),
		}
	}
	c.envVars = map[string]string{
		"USE_REDIS": "1",
		"REDIS_URL": "rediss://redishost:3333",
	}
	c.fileContent = `
[Redis]
URL = "rediss://redishost:3333"
`
	return c
}

func makeValidConfigRedisDockerPort() testDataValidConfig {
	c := testDataValidConfig{name: "Redis - special Docker port syntax"}
	c.makeConfig = func(c *Config) {
		c.Redis = RedisConfig{
			URL: newOptURLAbsoluteMustBeValid("redis://redishost:6400"),
		}
	}
	c.envVars = map[string]string{
		"USE_REDIS":  "1",
		"REDIS_PORT": "tcp://redishost:6400",
	}
	// not applicable for a config file
	return c
}

func makeValidConfigRedisAsStore() testDataValidConfig {
	c := testDataValidConfig{name: "Redis - persistent store"}
	c.makeConfig = func(c *Config) {
		c.Redis = RedisConfig{
			URL: newOptURLAbsoluteMustBeValid("redis://localhost:6379"),
		}
		c.Cache.PersistentStore = StoreRedis
	}
	c.envVars = map[string]string{
		"USE_REDIS":              "1",
		"CACHE_PERSISTENT_STORE": "redis",
	}
	c.fileContent = `
[Redis]
URL = "redis://localhost:6379"

[Cache]
PersistentStore = redis
`
	return c
}

func makeValidConfigConsulMinimal() testDataValidConfig {
	c := testDataValidConfig{name: "Consul - minimal parameters"}
	c.makeConfig = func(c *Config) {
		c.Consul = ConsulConfig{
			Host:   "localhost",
			Prefix: "relay",
		}
		c.Cache.PersistentStore = StoreConsul
	}
	c.envVars = map[string]string{
		"USE_CONSUL":    "1",
		"CONSUL_PREFIX": "relay",
	}
	c.fileContent = `
[Consul]
Host = "localhost"
Prefix = "relay"
`
	return c
}

func makeValidConfigDynamoDBMinimal() testDataValidConfig {
	c := testDataValidConfig{name: "DynamoDB - minimal parameters"}
	c.makeConfig = func(c *Config) {
		c.DynamoDB = DynamoDBConfig{
			Enabled:   true,
			TableName: defaultDynamoDBTable,
		}
		c.Cache.PersistentStore = StoreDynamoDB
	}
	c.envVars = map[string]string{
		"USE_DYNAMODB": "1",
	}
	c.fileContent = `
[DynamoDB]
Enabled = true
`
	c.warnings = []string{"DynamoDB table name not specified"}
	return c
}

func makeValidConfigDynamoDBAll() testDataValidConfig {
	c := testDataValidConfig{name: "DynamoDB - all parameters"}
	c.makeConfig = func(c *Config) {
		c.DynamoDB = DynamoDBConfig{
			Enabled:   true,
			TableName: "projects",
			URL:       newOptURLAbsoluteMustBeValid("http://localhost:8000"),
			Prefix:    "relay",
		}
		c.Cache.PersistentStore = StoreDynamoDB
	}
	c.envVars = map[string]string{
		"USE_DYNAMODB":    "1",
		"DYNAMODB_TABLE":  "projects",
		"DYNAMODB_URL":    "http://localhost:8000",
		"DYNAMODB_PREFIX": "relay",
	}
	c.fileContent = `
[DynamoDB]
Enabled = true
TableName = "projects"
URL = "http://localhost:8000"
Prefix = "relay"
`
	return c
}

func makeValidConfigProcessing() testDataValidConfig {
	c := testDataValidConfig{name: "processing"}
	c.makeConfig = func(c *Config) {
		c.Processing = ProcessingConfig{
			Enabled:      true,
			KafkaBrokers: ct.NewOptStringList([]string{"kafka:9092"}),
			TopicPrefix:  "test-",
		}
		c.Redis = RedisConfig{
			URL: newOptURLAbsoluteMustBeValid("redis://localhost:6379"),
		}
	}
	c.envVars = map[string]string{
		"PROCESSING_ENABLED":       "1",
		"PROCESSING_KAFKA_BROKERS": "kafka:9092",
		"PROCESSING_TOPIC_PREFIX":  "test-",
		"USE_REDIS":                "1",
	}
	c.fileContent = `
[Processing]
Enabled = true
KafkaBrokers = "kafka:9092"
TopicPrefix = "test-"

[Redis]
URL = "redis://localhost:6379"
`
	return c
}

func makeValidConfigStaticRelay() testDataValidConfig {
	_, pk := credential.GenerateKeyPair()
	id := "4a7d2a51-5f4a-4e0c-9cb4-52c0b0b2ad8f"
	c := testDataValidConfig{name: "static relay"}
	c.makeConfig = func(c *Config) {
		c.StaticRelay = map[string]*StaticRelayConfig{
			id: {PublicKey: pk.String(), Internal: true},
		}
	}
	c.envVars = map[string]string{
		"STATIC_RELAY_KEY_" + id:      pk.String(),
		"STATIC_RELAY_INTERNAL_" + id: "true",
	}
	c.fileContent = `
[StaticRelay "` + id + `"]
PublicKey = "` + pk.String() + `"
Internal = true
`
	return c
}

func makeValidConfigDatadogAll() testDataValidConfig {
	c := testDataValidConfig{name: "Datadog - all parameters"}
	c.makeConfig = func(c *Config) {
		c.Datadog = DatadogConfig{
			Enabled:   true,
			Prefix:    "pre-",
			TraceAddr: "trace",
			StatsAddr: "stats",
			Tag:       []string{"tag1:value1", "tag2:value2"},
		}
	}
	c.envVars = map[string]string{
		"USE_DATADOG":        "1",
		"DATADOG_PREFIX":     "pre-",
		"DATADOG_TRACE_ADDR": "trace",
		"DATADOG_STATS_ADDR": "stats",
		"DATADOG_TAG_tag1":   "value1",
		"DATADOG_TAG_tag2":   "value2",
	}
	c.fileContent = `
[Datadog]
Enabled = true
Prefix = "pre-"
TraceAddr = "trace"
StatsAddr = "stats"
Tag = "tag1:value1"
Tag = "tag2:value2"
`
	return c
}

func makeValidConfigStackdriverAll() testDataValidConfig {
	c := testDataValidConfig{name: "Stackdriver - all parameters"}
	c.makeConfig = func(c *Config) {
		c.Stackdriver = StackdriverConfig{
			Enabled:   true,
			Prefix:    "pre-",
			ProjectID: "proj",
		}
	}
	c.envVars = map[string]string{
		"USE_STACKDRIVER":        "1",
		"STACKDRIVER_PREFIX":     "pre-",
		"STACKDRIVER_PROJECT_ID": "proj",
	}
	c.fileContent = `
[Stackdriver]
Enabled = true
Prefix = "pre-"
ProjectID = "proj"
`
	return c
}

func makeValidConfigPrometheusAll() testDataValidConfig {
	c := testDataValidConfig{name: "Prometheus - all parameters"}
	c.makeConfig = func(c *Config) {
		c.Prometheus = PrometheusConfig{
			Enabled: true,
			Prefix:  "pre-",
			Port:    mustOptIntGreaterThanZero(8333),
		}
	}
	c.envVars = map[string]string{
		"USE_PROMETHEUS":    "1",
		"PROMETHEUS_PREFIX": "pre-",
		"PROMETHEUS_PORT":   "8333",
	}
	c.fileContent = `
[Prometheus]
Enabled = true
Prefix = "pre-"
Port = 8333
`
	return c
}

func makeValidConfigProxy() testDataValidConfig {
	c := testDataValidConfig{name: "proxy properties"}
	c.makeConfig = func(c *Config) {
		c.Proxy = ProxyConfig{
			URL:         newOptURLAbsoluteMustBeValid("http://proxy"),
			User:        "user",
			Password:    "pass",
			CACertFiles: ct.NewOptStringList([]string{"cert"}),
		}
	}
	c.envVars = map[string]string{
		"PROXY_URL":           "http://proxy",
		"PROXY_AUTH_USER":     "user",
		"PROXY_AUTH_PASSWORD": "pass",
		"PROXY_CA_CERTS":      "cert",
	}
	c.fileContent = `
[Proxy]
URL = "http://proxy"
User = "user"
Password = "pass"
CACertFiles = "cert"
`
	return c
}
