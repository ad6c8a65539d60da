package redis

import (
	"context"
	"strings"
	"time"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/util"

	goredis "github.com/go-redis/redis/v8"
	redigo "github.com/gomodule/redigo/redis"
)

const (
	defaultPoolSize    = 24
	defaultDialTimeout = 5 * time.Second
	defaultPoolIdle    = 240 * time.Second
)

// Config is the resolved Redis configuration.
type Config struct {
	URL          string
	ClusterNodes []string
	Username     string
	Password     string
	TLS          bool
	PoolSize     int
	DialTimeout  time.Duration
	Prefix       string
}

// ConfigFromRelayConfig converts the [Redis] configuration section. Host and port have already
// been folded into the URL by config validation.
func ConfigFromRelayConfig(c config.RedisConfig) Config {
	ret := Config{
		ClusterNodes: c.ClusterNodes.Values(),
		Username:     c.Username,
		Password:     c.Password,
		TLS:          c.TLS,
		PoolSize:     c.PoolSize.GetOrElse(defaultPoolSize),
		DialTimeout:  c.DialTimeout.GetOrElse(defaultDialTimeout),
		Prefix:       c.Prefix,
	}
	if c.URL.IsDefined() {
		ret.URL = c.URL.String()
	}
	return ret
}

// IsDefined returns true if either a URL or cluster nodes are configured.
func (c Config) IsDefined() bool {
	return c.URL != "" || len(c.ClusterNodes) != 0
}

// EffectiveURL returns the URL with the scheme changed to "rediss:" if TLS was requested.
func (c Config) EffectiveURL() string {
	if c.TLS && strings.HasPrefix(c.URL, "redis:") {
		return "rediss:" + strings.TrimPrefix(c.URL, "redis:")
	}
	return c.URL
}

// RedactedURL returns the URL with any password hidden, for logging.
func (c Config) RedactedURL() string {
	if c.URL == "" {
		return strings.Join(c.ClusterNodes, ",")
	}
	return util.RedactURL(c.EffectiveURL())
}

// NewUniversalClient creates a go-redis client. With cluster nodes it is a cluster client;
// otherwise it connects to the single server named by the URL.
func NewUniversalClient(c Config) (goredis.UniversalClient, error) {
	if !c.IsDefined() {
		return nil, errNotConfigured()
	}
	opts := goredis.UniversalOptions{
		Username:    c.Username,
		Password:    c.Password,
		PoolSize:    c.PoolSize,
		DialTimeout: c.DialTimeout,
	}
	if len(c.ClusterNodes) != 0 {
		opts.Addrs = c.ClusterNodes
	} else {
		parsed, err := goredis.ParseURL(c.EffectiveURL())
		if err != nil {
			return nil, errBadURL(err)
		}
		opts.Addrs = []string{parsed.Addr}
		opts.DB = parsed.DB
		opts.TLSConfig = parsed.TLSConfig
		if opts.Username == "" {
			opts.Username = parsed.Username
		}
		if opts.Password == "" {
			opts.Password = parsed.Password
		}
	}
	return goredis.NewUniversalClient(&opts), nil
}

// NewPool creates a redigo connection pool. Cluster mode is not supported by redigo, so with
// cluster nodes the pool connects to the first node.
func NewPool(c Config) (*redigo.Pool, error) {
	if !c.IsDefined() {
		return nil, errNotConfigured()
	}
	url := c.EffectiveURL()
	if url == "" {
		url = "redis://" + c.ClusterNodes[0]
	}
	var dialOptions []redigo.DialOption
	if c.Password != "" {
		dialOptions = append(dialOptions, redigo.DialPassword(c.Password))
	}
	if c.Username != "" {
		dialOptions = append(dialOptions, redigo.DialUsername(c.Username))
	}
	dialOptions = append(dialOptions, redigo.DialConnectTimeout(c.DialTimeout))
	return &redigo.Pool{
		MaxIdle:     c.PoolSize,
		MaxActive:   c.PoolSize,
		IdleTimeout: defaultPoolIdle,
		Wait:        true,
		Dial: func() (redigo.Conn, error) {
			conn, err := redigo.DialURL(url, dialOptions...)
			if err != nil {
				return nil, errConnection(err)
			}
			return conn, nil
		},
		TestOnBorrow: func(conn redigo.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := conn.Do("PING")
			return err
		},
	}, nil
}

// Ping checks that the server is reachable.
func Ping(ctx context.Context, client goredis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return errConnection(err)
	}
	return nil
}
