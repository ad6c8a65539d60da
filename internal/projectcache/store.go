package projectcache

import (
	"context"
	"encoding/json"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/dynconfig"
	"github.com/eventrelay/relay/internal/redis"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const storeKeyPrefix = "relayconfig"

// Store persists project states across restarts and between relays. Get returns nil without an
// error for keys that are not stored.
type Store interface {
	Name() string
	Get(ctx context.Context, key basictypes.ProjectKey) (*dynconfig.ProjectState, error)
	Put(ctx context.Context, key basictypes.ProjectKey, state *dynconfig.ProjectState) error
	Close() error
}

// NewStore creates the persistent store selected by the [Cache] configuration, or returns nil if
// none is selected.
func NewStore(c config.Config, loggers ldlog.Loggers) (Store, error) {
	expiry := c.Cache.ProjectExpiry.GetOrElse(config.DefaultProjectExpiry)
	switch c.Cache.PersistentStore {
	case config.StoreRedis:
		rc := redis.ConfigFromRelayConfig(c.Redis)
		if !rc.IsDefined() {
			return nil, errStoreNotConfigured(string(config.StoreRedis))
		}
		return newRedisStore(rc, expiry+c.Cache.ProjectGracePeriod.GetOrElse(config.DefaultProjectGracePeriod), loggers)
	case config.StoreConsul:
		if c.Consul.Host == "" {
			return nil, errStoreNotConfigured(string(config.StoreConsul))
		}
		return newConsulStore(c.Consul, loggers)
	case config.StoreDynamoDB:
		if !c.DynamoDB.Enabled {
			return nil, errStoreNotConfigured(string(config.StoreDynamoDB))
		}
		return newDynamoDBStore(c.DynamoDB, nil, loggers)
	}
	return nil, nil
}

func encodeState(state *dynconfig.ProjectState) ([]byte, error) {
	return json.Marshal(state)
}

func decodeState(data []byte) (*dynconfig.ProjectState, error) {
	return dynconfig.ParseProjectState(data)
}

func prefixedKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
