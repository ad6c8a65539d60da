package config

type testDataInvalidConfig struct {
	name         string
	envVarsError string
	fileError    string
	envVars      map[string]string
	fileContent  string
}

func makeInvalidConfigs() []testDataInvalidConfig {
	return []testDataInvalidConfig{
		makeInvalidConfigTLSWithNoCertOrKey(),
		makeInvalidConfigTLSWithNoKey(),
		makeInvalidConfigTLSVersion(),
		makeInvalidConfigRelayMode(),
		makeInvalidConfigUpstreamScheme(),
		makeInvalidConfigUpstreamPath(),
		makeInvalidConfigByteSize(),
		makeInvalidConfigStoreKind(),
		makeInvalidConfigRedisInvalidDockerPort(),
		makeInvalidConfigRedisConflictingParams(),
		makeInvalidConfigRedisStoreWithoutRedis(),
		makeInvalidConfigConsulTokenAndTokenFile(),
		makeInvalidConfigMultipleDatabases(),
		makeInvalidConfigProcessingWithoutKafka(),
		makeInvalidConfigProcessingWithoutRedis(),
		makeInvalidConfigProcessingInProxyMode(),
		makeInvalidConfigStaticRelayBadID(),
		makeInvalidConfigStaticRelayBadKey(),
	}
}

func makeInvalidConfigTLSWithNoCertOrKey() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "TLS without cert/key"}
	c.envVarsError = "TLS cert and key are required if TLS is enabled"
	c.envVars = map[string]string{"TLS_ENABLED": "1"}
	c.fileContent = `
[Relay]
TLSEnabled = true
`
	return c
}

func makeInvalidConfigTLSWithNoKey() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "TLS without key"}
	c.envVarsError = "TLS cert and key are required if TLS is enabled"
	c.envVars = map[string]string{"TLS_ENABLED": "1", "TLS_CERT": "cert"}
	c.fileContent = `
[Relay]
TLSEnabled = true
TLSCert = cert
`
	return c
}

func makeInvalidConfigTLSVersion() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "bad TLS version"}
	c.envVarsError = `TLS_MIN_VERSION: "x" is not a valid TLS version`
	c.fileError = `"x" is not a valid TLS version`
	c.envVars = map[string]string{"TLS_MIN_VERSION": "x"}
	c.fileContent = `
[Relay]
TLSMinVersion = x
`
	return c
}

func makeInvalidConfigRelayMode() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "bad relay mode"}
	c.envVarsError = `RELAY_MODE: "sideways" is not a valid relay mode`
	c.fileError = `"sideways" is not a valid relay mode`
	c.envVars = map[string]string{"RELAY_MODE": "sideways"}
	c.fileContent = `
[Relay]
Mode = sideways
`
	return c
}

func makeInvalidConfigUpstreamScheme() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "upstream with bad scheme"}
	c.envVarsError = "RELAY_UPSTREAM: " + string(UpstreamErrorBadScheme)
	c.fileError = string(UpstreamErrorBadScheme)
	c.envVars = map[string]string{"RELAY_UPSTREAM": "ftp://upstream"}
	c.fileContent = `
[Relay]
Upstream = "ftp://upstream"
`
	return c
}

func makeInvalidConfigUpstreamPath() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "upstream with path"}
	c.envVarsError = "RELAY_UPSTREAM: " + string(UpstreamErrorNonOriginURL)
	c.fileError = string(UpstreamErrorNonOriginURL)
	c.envVars = map[string]string{"RELAY_UPSTREAM": "https://upstream/api/"}
	c.fileContent = `
[Relay]
Upstream = "https://upstream/api/"
`
	return c
}

func makeInvalidConfigByteSize() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "bad byte size"}
	c.envVarsError = `LIMITS_MAX_EVENT_SIZE: "lots" is not a valid byte size`
	c.fileError = `"lots" is not a valid byte size`
	c.envVars = map[string]string{"LIMITS_MAX_EVENT_SIZE": "lots"}
	c.fileContent = `
[Limits]
MaxEventSize = lots
`
	return c
}

func makeInvalidConfigStoreKind() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "bad persistent store"}
	c.envVarsError = `CACHE_PERSISTENT_STORE: "postgres" is not a valid persistent store`
	c.fileError = `"postgres" is not a valid persistent store`
	c.envVars = map[string]string{"CACHE_PERSISTENT_STORE": "postgres"}
	c.fileContent = `
[Cache]
PersistentStore = postgres
`
	return c
}

func makeInvalidConfigRedisInvalidDockerPort() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "Redis - Docker port syntax with invalid port"}
	c.envVarsError = "REDIS_PORT: not a valid integer"
	c.envVars = map[string]string{
		"USE_REDIS":  "1",
		"REDIS_PORT": "tcp://redishost:xxx",
	}
	return c
}

func makeInvalidConfigRedisConflictingParams() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "Redis - conflicting parameters"}
	c.envVarsError = "please specify Redis URL or host/port, but not both"
	c.envVars = map[string]string{
		"USE_REDIS":  "1",
		"REDIS_URL":  "redis://redishost:6400",
		"REDIS_HOST": "redishost",
	}
	c.fileContent = `
[Redis]
URL = "redis://redishost:6400"
Host = "redishost"
`
	return c
}

func makeInvalidConfigRedisStoreWithoutRedis() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "Redis store without Redis"}
	c.envVarsError = `persistent store "redis" is selected but not configured`
	c.envVars = map[string]string{"CACHE_PERSISTENT_STORE": "redis"}
	c.fileContent = `
[Cache]
PersistentStore = redis
`
	return c
}

func makeInvalidConfigConsulTokenAndTokenFile() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "Consul - token and token file"}
	c.envVarsError = "Consul token must be specified as either an inline value or a file, but not both"
	c.envVars = map[string]string{
		"USE_CONSUL":        "1",
		"CONSUL_TOKEN":      "abc",
		"CONSUL_TOKEN_FILE": "xyz",
	}
	c.fileContent = `
[Consul]
Host = "localhost"
Token = "abc"
TokenFile = "xyz"
`
	return c
}

func makeInvalidConfigMultipleDatabases() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "multiple databases"}
	c.envVarsError = "multiple databases are enabled (Consul, DynamoDB); only one is allowed"
	c.envVars = map[string]string{
		"USE_CONSUL":   "1",
		"USE_DYNAMODB": "1",
	}
	c.fileContent = `
[Consul]
Host = "localhost"

[DynamoDB]
Enabled = true
`
	return c
}

func makeInvalidConfigProcessingWithoutKafka() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "processing without Kafka"}
	c.envVarsError = "processing mode requires at least one Kafka broker"
	c.envVars = map[string]string{
		"PROCESSING_ENABLED": "1",
		"USE_REDIS":          "1",
	}
	c.fileContent = `
[Processing]
Enabled = true

[Redis]
Host = "localhost"
`
	return c
}

func makeInvalidConfigProcessingWithoutRedis() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "processing without Redis"}
	c.envVarsError = "processing mode requires Redis for rate limiting"
	c.envVars = map[string]string{
		"PROCESSING_ENABLED":       "1",
		"PROCESSING_KAFKA_BROKERS": "kafka:9092",
	}
	c.fileContent = `
[Processing]
Enabled = true
KafkaBrokers = "kafka:9092"
`
	return c
}

func makeInvalidConfigProcessingInProxyMode() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "processing in proxy mode"}
	c.envVarsError = "processing mode cannot be enabled for a relay in proxy mode"
	c.envVars = map[string]string{
		"RELAY_MODE":               "proxy",
		"PROCESSING_ENABLED":       "1",
		"PROCESSING_KAFKA_BROKERS": "kafka:9092",
		"USE_REDIS":                "1",
	}
	c.fileContent = `
[Relay]
Mode = proxy

[Processing]
Enabled = true
KafkaBrokers = "kafka:9092"

[Redis]
Host = "localhost"
`
	return c
}

func makeInvalidConfigStaticRelayBadID() testDataInvalidConfig {
	c := testDataInvalidConfig{name: "static relay with bad ID"}
	c.envVarsError = `static relay "not-a-uuid": relay ID must be a UUID`
	c.envVars = map[string]string{"STATIC_RELAY_KEY_not-a-uuid": "key"}
	c.fileContent = `
[StaticRelay "not-a-uuid"]
PublicKey = "key"
`
	return c
}

func makeInvalidConfigStaticRelayBadKey() testDataInvalidConfig {
	id := "4a7d2a51-5f4a-4e0c-9cb4-52c0b0b2ad8f"
	c := testDataInvalidConfig{name: "static relay with bad key"}
	c.envVarsError = `static relay "` + id + `": invalid public key`
	c.envVars = map[string]string{"STATIC_RELAY_KEY_" + id: "not a key!"}
	c.fileContent = `
[StaticRelay "` + id + `"]
PublicKey = "not a key!"
`
	return c
}
