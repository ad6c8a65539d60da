package projectcache

import (
	"context"
	"errors"
	"time"

	redigo "github.com/gomodule/redigo/redis"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/dynconfig"
	"github.com/eventrelay/relay/internal/redis"
	"github.com/eventrelay/relay/internal/util"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// States are stored zstd-compressed, matching what other relays sharing the Redis instance write.
const redisStoreEncoding = "zstd"

type redisStore struct {
	pool    *redigo.Pool
	prefix  string
	ttl     time.Duration
	loggers ldlog.Loggers
}

func newRedisStore(rc redis.Config, ttl time.Duration, loggers ldlog.Loggers) (*redisStore, error) {
	pool, err := redis.NewPool(rc)
	if err != nil {
		return nil, err
	}
	loggers.SetPrefix("[RedisProjectStore]")
	loggers.Infof("Using Redis at %s", rc.RedactedURL())
	return &redisStore{pool: pool, prefix: rc.Prefix, ttl: ttl, loggers: loggers}, nil
}

func (s *redisStore) Name() string { return "Redis" }

func (s *redisStore) redisKey(key basictypes.ProjectKey) string {
	return s.prefix + storeKeyPrefix + ":" + string(key)
}

func (s *redisStore) Get(ctx context.Context, key basictypes.ProjectKey) (*dynconfig.ProjectState, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close() //nolint:errcheck

	data, err := redigo.Bytes(conn.Do("GET", s.redisKey(key)))
	if errors.Is(err, redigo.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, err = util.DecompressData(redisStoreEncoding, data)
	if err != nil {
		return nil, err
	}
	return decodeState(data)
}

func (s *redisStore) Put(ctx context.Context, key basictypes.ProjectKey, state *dynconfig.ProjectState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	data, err = util.CompressData(redisStoreEncoding, data)
	if err != nil {
		return err
	}
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck

	seconds := int64(s.ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	_, err = conn.Do("SETEX", s.redisKey(key), seconds, data)
	return err
}

func (s *redisStore) Close() error {
	return s.pool.Close()
}
