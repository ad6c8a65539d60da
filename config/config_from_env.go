package config

import (
	"sort"
	"strconv"
	"strings"

	ct "github.com/launchdarkly/go-configtypes"
)

const (
	envStaticRelayKeyPrefix      = "STATIC_RELAY_KEY_"
	envStaticRelayInternalPrefix = "STATIC_RELAY_INTERNAL_"
	envDatadogTagPrefix          = "DATADOG_TAG_"
	envRedisPort                 = "REDIS_PORT"
	dockerLinkScheme             = "tcp://"
)

// LoadConfigFromEnvironment sets parameters in a Config struct from environment variables.
//
// The Config parameter should be initialized with default values first. Variables that are not
// set leave the existing value alone, so this can be layered on top of a configuration file. The
// result is not validated; see LoadConfig.
func LoadConfigFromEnvironment(c *Config) error {
	reader := ct.NewVarReaderFromEnvironment()

	for _, section := range []interface{}{
		&c.Relay, &c.HTTP, &c.Limits, &c.Cache, &c.Aggregator,
		&c.Outcomes, &c.Processing, &c.Auth, &c.Logging, &c.Proxy,
	} {
		reader.ReadStruct(section, false)
	}

	readStaticRelaysFromEnvironment(reader, c)
	readRedisFromEnvironment(reader, &c.Redis)
	readStoresFromEnvironment(reader, c)
	readMetricsFromEnvironment(reader, &c.MetricsConfig)

	return reader.Result().GetError()
}

// readStaticRelaysFromEnvironment handles STATIC_RELAY_KEY_<id> and STATIC_RELAY_INTERNAL_<id>.
// A key variable may add a public key to a relay that the file already declared.
func readStaticRelaysFromEnvironment(reader *ct.VarReader, c *Config) {
	for relayID, publicKey := range reader.FindPrefixedValues(envStaticRelayKeyPrefix) {
		id := strings.ToLower(relayID)
		if c.StaticRelay == nil {
			c.StaticRelay = make(map[string]*StaticRelayConfig)
		}
		sr := c.StaticRelay[id]
		if sr == nil {
			sr = &StaticRelayConfig{}
		}
		updated := *sr
		updated.PublicKey = publicKey
		reader.Read(envStaticRelayInternalPrefix+relayID, &updated.Internal)
		c.StaticRelay[id] = &updated
	}
}

func readRedisFromEnvironment(reader *ct.VarReader, rc *RedisConfig) {
	useRedis := false
	reader.Read("USE_REDIS", &useRedis)

	// REDIS_PORT is read as a string because a linked container sets it to tcp://host:port.
	port := ""
	if rc.Port.IsDefined() {
		port = strconv.Itoa(rc.Port.GetOrElse(0))
	}
	reader.ReadStruct(rc, false)
	reader.Read(envRedisPort, &port)

	switch {
	case strings.HasPrefix(port, dockerLinkScheme):
		host, linkedPort, hasPort := strings.Cut(strings.TrimPrefix(port, dockerLinkScheme), ":")
		rc.Host = host
		if hasPort {
			if err := rc.Port.UnmarshalText([]byte(linkedPort)); err != nil {
				reader.AddError(ct.ValidationPath{envRedisPort}, err)
			}
		}
	case port != "":
		if rc.Host == "" {
			rc.Host = defaultRedisHost
		}
		reader.Read(envRedisPort, &rc.Port)
	}

	// USE_REDIS with nothing else configured means the local default instance.
	if useRedis && !rc.URL.IsDefined() && rc.Host == "" && !rc.Port.IsDefined() &&
		len(rc.ClusterNodes.Values()) == 0 {
		rc.URL = defaultRedisURL
	}
}

func readStoresFromEnvironment(reader *ct.VarReader, c *Config) {
	useConsul := false
	reader.Read("USE_CONSUL", &useConsul)
	if useConsul {
		c.Consul.Host = defaultConsulHost
		reader.ReadStruct(&c.Consul, false)
	}

	reader.Read("USE_DYNAMODB", &c.DynamoDB.Enabled)
	if c.DynamoDB.Enabled {
		reader.ReadStruct(&c.DynamoDB, false)
	}
}

func readMetricsFromEnvironment(reader *ct.VarReader, mc *MetricsConfig) {
	reader.ReadStruct(&mc.Datadog, false)
	if mc.Datadog.Enabled {
		for name, value := range reader.FindPrefixedValues(envDatadogTagPrefix) {
			mc.Datadog.Tag = append(mc.Datadog.Tag, name+":"+value)
		}
		sort.Strings(mc.Datadog.Tag)
	}
	reader.ReadStruct(&mc.Stackdriver, false)
	reader.ReadStruct(&mc.Prometheus, false)
}
