package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pborman/uuid"

	"github.com/eventrelay/relay/internal/credential"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

var (
	errTLSEnabledWithoutCertOrKey = errors.New("TLS cert and key are required if TLS is enabled")
	errRedisURLWithHostAndPort    = errors.New("please specify Redis URL or host/port, but not both")
	errRedisBadHostname           = errors.New("invalid Redis hostname")
	errRedisURLWithClusterNodes   = errors.New("please specify Redis URL or cluster nodes, but not both")
	errConsulTokenAndTokenFile    = errors.New("Consul token must be specified as either an inline value or a file, but not both") //nolint:stylecheck
	errConsulTokenFileNotFound    = errors.New("Consul token file not found")                                                      //nolint:stylecheck
	errProcessingWithoutKafka     = errors.New("processing mode requires at least one Kafka broker")
	errProcessingWithoutRedis     = errors.New("processing mode requires Redis for rate limiting")
	errProcessingInProxyMode      = errors.New("processing mode cannot be enabled for a relay in proxy mode")
)

func errMultipleDatabases(databases []string) error {
	return fmt.Errorf("multiple databases are enabled (%s); only one is allowed", strings.Join(databases, ", "))
}

func errPersistentStoreNotConfigured(kind StoreKind) error {
	return fmt.Errorf("persistent store %q is selected but not configured", kind)
}

func errStaticRelayBadID(id string) error {
	return fmt.Errorf("static relay %q: relay ID must be a UUID", id)
}

func errStaticRelayBadKey(id string, err error) error {
	return fmt.Errorf("static relay %q: invalid public key: %w", id, err)
}

func errBadLogLevel(s string) error {
	return fmt.Errorf("%q is not a valid log level", s)
}

func errBadTLSVersion(s string) error {
	return fmt.Errorf("%q is not a valid TLS version", s)
}

func errBadByteSize(s string) error {
	return fmt.Errorf("%q is not a valid byte size", s)
}

func errBadRelayMode(s string) error {
	return fmt.Errorf("%q is not a valid relay mode; expected managed, proxy, static, or capture", s)
}

func errBadHTTPEncoding(s string) error {
	return fmt.Errorf("%q is not a valid HTTP encoding", s)
}

func errBadStoreKind(s string) error {
	return fmt.Errorf("%q is not a valid persistent store; expected redis, consul, or dynamodb", s)
}

// UpstreamError is returned when the upstream URL cannot be used.
type UpstreamError string

//nolint:revive
const (
	UpstreamErrorBadScheme    UpstreamError = "upstream URL must use http or https"
	UpstreamErrorNoHost       UpstreamError = "upstream URL has no host"
	UpstreamErrorNonOriginURL UpstreamError = "upstream URL must not have a path, query, or credentials"
)

func (e UpstreamError) Error() string { return string(e) }

// ValidateConfig ensures that the configuration does not contain contradictory properties.
//
// This method covers validation rules that can't be enforced on a per-field basis (for instance, if
// either field A or field B can be specified but it's invalid to specify both). It is allowed to modify
// the Config struct in order to canonicalize settings in a way that simplifies things for the Relay code
// (for instance, converting Redis host/port settings into a Redis URL, or selecting the persistent store
// from whichever database is configured).
//
// LoadConfig calls this method after all configuration sources have been applied, and it is called
// again by the Relay constructor because application code that uses Relay as a library may construct a
// Config programmatically. Running it twice is harmless: normalized settings validate unchanged.
func ValidateConfig(c *Config, loggers ldlog.Loggers) error {
	var result ct.ValidationResult

	validateConfigTLS(&result, c)
	validateConfigDatabases(&result, c, loggers)
	validateConfigProcessing(&result, c)
	validateConfigStaticRelays(&result, c)

	return result.GetError()
}

func validateConfigTLS(result *ct.ValidationResult, c *Config) {
	if c.Relay.TLSEnabled && (c.Relay.TLSCert == "" || c.Relay.TLSKey == "") {
		result.AddError(nil, errTLSEnabledWithoutCertOrKey)
	}
}

func validateConfigDatabases(result *ct.ValidationResult, c *Config, loggers ldlog.Loggers) {
	normalizeRedisConfig(result, c)

	if c.Consul.Host != "" {
		switch {
		case c.Consul.Token != "" && c.Consul.TokenFile != "":
			result.AddError(nil, errConsulTokenAndTokenFile)
		case c.Consul.TokenFile != "":
			if _, err := os.Stat(c.Consul.TokenFile); os.IsNotExist(err) {
				result.AddError(nil, errConsulTokenFileNotFound)
			}
		}
	}

	// Redis may be configured only for quotas, so it is a store candidate only if nothing else is.
	databases := []string{}
	if c.Consul.Host != "" {
		databases = append(databases, "Consul")
	}
	if c.DynamoDB.Enabled {
		databases = append(databases, "DynamoDB")
	}
	if len(databases) > 1 {
		result.AddError(nil, errMultipleDatabases(databases))
		return
	}

	switch c.Cache.PersistentStore {
	case StoreNone:
		switch {
		case c.Consul.Host != "":
			c.Cache.PersistentStore = StoreConsul
		case c.DynamoDB.Enabled:
			c.Cache.PersistentStore = StoreDynamoDB
		}
	case StoreRedis:
		if !redisConfigured(c) {
			result.AddError(nil, errPersistentStoreNotConfigured(StoreRedis))
		}
		if len(databases) != 0 {
			result.AddError(nil, errMultipleDatabases(append(databases, "Redis")))
		}
	case StoreConsul:
		if c.DynamoDB.Enabled && c.Consul.Host == "" {
			result.AddError(nil, errMultipleDatabases([]string{"Consul", "DynamoDB"}))
		}
		if c.Consul.Host == "" {
			c.Consul.Host = defaultConsulHost
		}
	case StoreDynamoDB:
		if c.Consul.Host != "" && !c.DynamoDB.Enabled {
			result.AddError(nil, errMultipleDatabases([]string{"Consul", "DynamoDB"}))
		}
		c.DynamoDB.Enabled = true
	}

	if c.Cache.PersistentStore == StoreDynamoDB && c.DynamoDB.TableName == "" {
		loggers.Warnf("DynamoDB table name not specified; using %q", defaultDynamoDBTable)
		c.DynamoDB.TableName = defaultDynamoDBTable
	}
}

func validateConfigProcessing(result *ct.ValidationResult, c *Config) {
	if !c.Processing.Enabled {
		return
	}
	if c.Relay.Mode.GetOrDefault() == RelayModeProxy {
		result.AddError(nil, errProcessingInProxyMode)
	}
	if len(c.Processing.KafkaBrokers.Values()) == 0 {
		result.AddError(nil, errProcessingWithoutKafka)
	}
	if !redisConfigured(c) {
		result.AddError(nil, errProcessingWithoutRedis)
	}
}

func validateConfigStaticRelays(result *ct.ValidationResult, c *Config) {
	for id, sr := range c.StaticRelay {
		if uuid.Parse(id) == nil {
			result.AddError(nil, errStaticRelayBadID(id))
			continue
		}
		if sr == nil {
			continue
		}
		if _, err := credential.ParsePublicKey(sr.PublicKey); err != nil {
			result.AddError(nil, errStaticRelayBadKey(id, err))
		}
	}
}

func redisConfigured(c *Config) bool {
	return c.Redis.URL.IsDefined() || len(c.Redis.ClusterNodes.Values()) != 0
}

func normalizeRedisConfig(result *ct.ValidationResult, c *Config) {
	if c.Redis.URL.IsDefined() {
		if c.Redis.Host != "" || c.Redis.Port.IsDefined() {
			result.AddError(nil, errRedisURLWithHostAndPort)
		}
		if len(c.Redis.ClusterNodes.Values()) != 0 {
			result.AddError(nil, errRedisURLWithClusterNodes)
		}
	} else if c.Redis.Host != "" || c.Redis.Port.IsDefined() {
		host := c.Redis.Host
		if host == "" {
			host = defaultRedisHost
		}
		port := c.Redis.Port.GetOrElse(defaultRedisPort)
		url, err := ct.NewOptURLAbsoluteFromString(fmt.Sprintf("redis://%s:%d", host, port))
		if err != nil {
			result.AddError(nil, errRedisBadHostname)
		}
		c.Redis.URL = url
		c.Redis.Host = ""
		c.Redis.Port = ct.OptIntGreaterThanZero{}
	}
}
