// Package config contains the configuration model of Relay and the logic for reading it from
// files and environment variables.
package config

import (
	"time"

	ct "github.com/launchdarkly/go-configtypes"
)

const (
	// DefaultUpstream is the upstream used when none is configured.
	DefaultUpstream = "https://sentry.io/"

	// DefaultPort is the port Relay listens on if none is configured.
	DefaultPort = 3000

	// DefaultHost is the interface Relay binds to if none is configured.
	DefaultHost = "127.0.0.1"

	// DefaultProjectExpiry is how long a fetched project state is considered fresh.
	DefaultProjectExpiry = 5 * time.Minute

	// DefaultProjectGracePeriod is how long an expired project state may still be used while it
	// is being refreshed.
	DefaultProjectGracePeriod = time.Minute

	// DefaultBucketInterval is the width of metric buckets.
	DefaultBucketInterval = 10 * time.Second

	// DefaultShutdownTimeout is how long Relay waits for in-flight work on shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultSignatureMaxAge is the oldest signature Relay accepts from another relay.
	DefaultSignatureMaxAge = 5 * time.Minute
)

const (
	defaultRedisHost     = "localhost"
	defaultRedisPort     = 6379
	defaultConsulHost    = "localhost"
	defaultDynamoDBTable = "relay-projects"
	defaultTopicPrefix   = "ingest-"
)

var (
	defaultRedisURL = newOptURLAbsoluteMustBeValid("redis://localhost:6379") //nolint:gochecknoglobals
)

// Config describes the configuration for a relay instance.
//
// If you are incorporating Relay into your own code and configuring it programmatically, it is best to
// start by copying config.DefaultConfig and then changing only the fields you need to change.
type Config struct {
	Relay       RelayConfig
	HTTP        HTTPConfig
	Limits      LimitsConfig
	Cache       CacheConfig
	Aggregator  AggregatorConfig
	Outcomes    OutcomesConfig
	Processing  ProcessingConfig
	Auth        AuthConfig
	Redis       RedisConfig
	Consul      ConsulConfig
	DynamoDB    DynamoDBConfig
	Proxy       ProxyConfig
	Logging     LoggingConfig
	StaticRelay map[string]*StaticRelayConfig
	MetricsConfig
}

// RelayConfig contains the basic settings of the relay: how it talks to its upstream and where it
// listens for requests.
//
// This corresponds to the [Relay] section in the configuration file.
type RelayConfig struct {
	Mode               RelayMode                `conf:"RELAY_MODE"`
	Upstream           UpstreamDescriptor       `conf:"RELAY_UPSTREAM"`
	Host               string                   `conf:"RELAY_HOST"`
	Port               ct.OptIntGreaterThanZero `conf:"RELAY_PORT"`
	TLSEnabled         bool                     `conf:"TLS_ENABLED"`
	TLSCert            string                   `conf:"TLS_CERT"`
	TLSKey             string                   `conf:"TLS_KEY"`
	TLSMinVersion      OptTLSVersion            `conf:"TLS_MIN_VERSION"`
	OverrideProjectIDs bool                     `conf:"OVERRIDE_PROJECT_IDS"`
	ExitOnError        bool                     `conf:"EXIT_ON_ERROR"`
	ConfigDir          string
}

// HTTPConfig controls the HTTP client that Relay uses to talk to its upstream.
//
// This corresponds to the [HTTP] section in the configuration file.
type HTTPConfig struct {
	Timeout                ct.OptDuration `conf:"HTTP_TIMEOUT"`
	ConnectionTimeout      ct.OptDuration `conf:"HTTP_CONNECTION_TIMEOUT"`
	MaxRetryInterval       ct.OptDuration `conf:"HTTP_MAX_RETRY_INTERVAL"`
	AuthRetryInterval      ct.OptDuration `conf:"HTTP_AUTH_RETRY_INTERVAL"`
	Encoding               HTTPEncoding   `conf:"HTTP_ENCODING"`
	ForwardUnknownRequests ct.OptBool     `conf:"HTTP_FORWARD"`
}

// LimitsConfig limits the size and volume of the data Relay accepts.
//
// This corresponds to the [Limits] section in the configuration file.
type LimitsConfig struct {
	MaxEnvelopeSize       OptByteSize              `conf:"LIMITS_MAX_ENVELOPE_SIZE"`
	MaxEventSize          OptByteSize              `conf:"LIMITS_MAX_EVENT_SIZE"`
	MaxAttachmentSize     OptByteSize              `conf:"LIMITS_MAX_ATTACHMENT_SIZE"`
	MaxProfileSize        OptByteSize              `conf:"LIMITS_MAX_PROFILE_SIZE"`
	MaxStatsdSize         OptByteSize              `conf:"LIMITS_MAX_STATSD_SIZE"`
	MaxAPIPayloadSize     OptByteSize              `conf:"LIMITS_MAX_API_PAYLOAD_SIZE"`
	MaxConcurrentRequests ct.OptIntGreaterThanZero `conf:"LIMITS_MAX_CONCURRENT_REQUESTS"`
	ShutdownTimeout       ct.OptDuration           `conf:"LIMITS_SHUTDOWN_TIMEOUT"`
}

// CacheConfig controls how project states are cached and refreshed.
//
// This corresponds to the [Cache] section in the configuration file.
type CacheConfig struct {
	ProjectExpiry      ct.OptDuration           `conf:"CACHE_PROJECT_EXPIRY"`
	ProjectGracePeriod ct.OptDuration           `conf:"CACHE_PROJECT_GRACE_PERIOD"`
	MissExpiry         ct.OptDuration           `conf:"CACHE_MISS_EXPIRY"`
	BatchInterval      ct.OptDuration           `conf:"CACHE_BATCH_INTERVAL"`
	BatchSize          ct.OptIntGreaterThanZero `conf:"CACHE_BATCH_SIZE"`
	FileInterval       ct.OptDuration           `conf:"CACHE_FILE_INTERVAL"`
	EvictionInterval   ct.OptDuration           `conf:"CACHE_EVICTION_INTERVAL"`
	Capacity           ct.OptIntGreaterThanZero `conf:"CACHE_CAPACITY"`
	PersistentStore    StoreKind                `conf:"CACHE_PERSISTENT_STORE"`
}

// AggregatorConfig controls metric bucket aggregation.
//
// This corresponds to the [Aggregator] section in the configuration file.
type AggregatorConfig struct {
	BucketInterval    ct.OptDuration           `conf:"AGGREGATOR_BUCKET_INTERVAL"`
	InitialDelay      ct.OptDuration           `conf:"AGGREGATOR_INITIAL_DELAY"`
	DebounceDelay     ct.OptDuration           `conf:"AGGREGATOR_DEBOUNCE_DELAY"`
	MaxSecsInPast     ct.OptDuration           `conf:"AGGREGATOR_MAX_PAST"`
	MaxSecsInFuture   ct.OptDuration           `conf:"AGGREGATOR_MAX_FUTURE"`
	MaxNameLength     ct.OptIntGreaterThanZero `conf:"AGGREGATOR_MAX_NAME_LENGTH"`
	MaxTagKeyLength   ct.OptIntGreaterThanZero `conf:"AGGREGATOR_MAX_TAG_KEY_LENGTH"`
	MaxTagValueLength ct.OptIntGreaterThanZero `conf:"AGGREGATOR_MAX_TAG_VALUE_LENGTH"`
	FlushPartitions   ct.OptIntGreaterThanZero `conf:"AGGREGATOR_FLUSH_PARTITIONS"`
	FlushInterval     ct.OptDuration           `conf:"AGGREGATOR_FLUSH_INTERVAL"`
}

// OutcomesConfig controls whether and how outcomes are reported.
//
// This corresponds to the [Outcomes] section in the configuration file.
type OutcomesConfig struct {
	Emit                     bool                     `conf:"OUTCOMES_EMIT"`
	EmitClientOutcomes       bool                     `conf:"OUTCOMES_EMIT_CLIENT"`
	BatchSize                ct.OptIntGreaterThanZero `conf:"OUTCOMES_BATCH_SIZE"`
	BatchInterval            ct.OptDuration           `conf:"OUTCOMES_BATCH_INTERVAL"`
	Source                   string                   `conf:"OUTCOMES_SOURCE"`
	AggregatorBucketInterval ct.OptDuration           `conf:"OUTCOMES_AGGREGATOR_BUCKET_INTERVAL"`
	AggregatorFlushInterval  ct.OptDuration           `conf:"OUTCOMES_AGGREGATOR_FLUSH_INTERVAL"`
	Capacity                 ct.OptIntGreaterThanZero `conf:"OUTCOMES_CAPACITY"`
}

// ProcessingConfig enables processing mode, in which Relay enforces quotas in Redis and writes
// data directly to Kafka instead of forwarding it upstream.
//
// This corresponds to the [Processing] section in the configuration file.
type ProcessingConfig struct {
	Enabled      bool                     `conf:"PROCESSING_ENABLED"`
	KafkaBrokers ct.OptStringList         `conf:"PROCESSING_KAFKA_BROKERS"`
	TopicPrefix  string                   `conf:"PROCESSING_TOPIC_PREFIX"`
	MaxBatchSize ct.OptIntGreaterThanZero `conf:"PROCESSING_MAX_BATCH_SIZE"`
	BatchTimeout ct.OptDuration           `conf:"PROCESSING_BATCH_TIMEOUT"`
}

// AuthConfig controls how this relay authenticates other relays that use it as their upstream.
//
// This corresponds to the [Auth] section in the configuration file.
type AuthConfig struct {
	ReadyRequiresAuth bool           `conf:"AUTH_READY"`
	SignatureMaxAge   ct.OptDuration `conf:"AUTH_SIGNATURE_MAX_AGE"`
	RegistrationTTL   ct.OptDuration `conf:"AUTH_REGISTRATION_TTL"`
}

// StaticRelayConfig describes a downstream relay whose public key is known in advance.
//
// This corresponds to one of the [StaticRelay "relay-id"] sections in the configuration file.
type StaticRelayConfig struct {
	PublicKey string
	Internal  bool
}

// RedisConfig configures Redis, which is used for quotas in processing mode and optionally as a
// persistent project state store.
//
// Redis is enabled if URL or Host is non-empty or if Port is non-zero. If only Host or Port is set,
// the other value is set to defaultRedisPort or defaultRedisHost. It is an error to set Host or
// Port if URL is also set.
//
// This corresponds to the [Redis] section in the configuration file.
type RedisConfig struct {
	Host         string `conf:"REDIS_HOST"`
	Port         ct.OptIntGreaterThanZero
	URL          ct.OptURLAbsolute        `conf:"REDIS_URL"`
	ClusterNodes ct.OptStringList         `conf:"REDIS_CLUSTER_NODES"`
	TLS          bool                     `conf:"REDIS_TLS"`
	Username     string                   `conf:"REDIS_USERNAME"`
	Password     string                   `conf:"REDIS_PASSWORD"`
	PoolSize     ct.OptIntGreaterThanZero `conf:"REDIS_POOL_SIZE"`
	DialTimeout  ct.OptDuration           `conf:"REDIS_DIAL_TIMEOUT"`
	Prefix       string                   `conf:"REDIS_PREFIX"`
}

// ConsulConfig configures Consul as a persistent project state store.
//
// This corresponds to the [Consul] section in the configuration file.
type ConsulConfig struct {
	Host      string `conf:"CONSUL_HOST"`
	Token     string `conf:"CONSUL_TOKEN"`
	TokenFile string `conf:"CONSUL_TOKEN_FILE"`
	Prefix    string `conf:"CONSUL_PREFIX"`
}

// DynamoDBConfig configures DynamoDB as a persistent project state store.
//
// This corresponds to the [DynamoDB] section in the configuration file.
type DynamoDBConfig struct {
	Enabled   bool              `conf:"USE_DYNAMODB"`
	TableName string            `conf:"DYNAMODB_TABLE"`
	URL       ct.OptURLAbsolute `conf:"DYNAMODB_URL"`
	Prefix    string            `conf:"DYNAMODB_PREFIX"`
}

// ProxyConfig represents the supported outbound proxy options.
//
// This corresponds to the [Proxy] section in the configuration file.
type ProxyConfig struct {
	URL         ct.OptURLAbsolute `conf:"PROXY_URL"`
	User        string            `conf:"PROXY_AUTH_USER"`
	Password    string            `conf:"PROXY_AUTH_PASSWORD"`
	CACertFiles ct.OptStringList  `conf:"PROXY_CA_CERTS"`
}

// LoggingConfig controls log output.
//
// This corresponds to the [Logging] section in the configuration file.
type LoggingConfig struct {
	Level OptLogLevel `conf:"LOG_LEVEL"`
}

// MetricsConfig contains configurations for optional metrics integrations.
//
// This corresponds to the [Datadog], [Stackdriver], and [Prometheus] sections in the configuration file.
type MetricsConfig struct {
	Datadog     DatadogConfig
	Stackdriver StackdriverConfig
	Prometheus  PrometheusConfig
}

// DatadogConfig configures the optional Datadog integration, which is used only if Enabled is true.
//
// This corresponds to the [Datadog] section in the configuration file.
type DatadogConfig struct {
	Enabled   bool   `conf:"USE_DATADOG"`
	Prefix    string `conf:"DATADOG_PREFIX"`
	TraceAddr string `conf:"DATADOG_TRACE_ADDR"`
	StatsAddr string `conf:"DATADOG_STATS_ADDR"`
	Tag       []string
}

// StackdriverConfig configures the optional Stackdriver integration, which is used only if Enabled is true.
//
// This corresponds to the [Stackdriver] section in the configuration file.
type StackdriverConfig struct {
	Enabled   bool   `conf:"USE_STACKDRIVER"`
	Prefix    string `conf:"STACKDRIVER_PREFIX"`
	ProjectID string `conf:"STACKDRIVER_PROJECT_ID"`
}

// PrometheusConfig configures the optional Prometheus integration, which is used only if Enabled is true.
//
// This corresponds to the [Prometheus] section in the configuration file.
type PrometheusConfig struct {
	Enabled bool                     `conf:"USE_PROMETHEUS"`
	Prefix  string                   `conf:"PROMETHEUS_PREFIX"`
	Port    ct.OptIntGreaterThanZero `conf:"PROMETHEUS_PORT"`
}

// DefaultConfig contains defaults for all relay configuration sections.
//
// Most defaults are applied lazily through the GetOrElse accessors of the optional field types,
// so that a configuration file can be told apart from one that sets every value explicitly.
var DefaultConfig = Config{ //nolint:gochecknoglobals
	Relay: RelayConfig{
		Host: DefaultHost,
	},
	Processing: ProcessingConfig{
		TopicPrefix: defaultTopicPrefix,
	},
}
