package projectcache

import (
	"context"
	"os"
	"strings"

	consul "github.com/hashicorp/consul/api"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/dynconfig"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const defaultConsulPrefix = "relay"

type consulStore struct {
	client  *consul.Client
	prefix  string
	loggers ldlog.Loggers
}

func newConsulStore(cc config.ConsulConfig, loggers ldlog.Loggers) (*consulStore, error) {
	cfg := consul.DefaultConfig()
	cfg.Address = cc.Host
	if cc.Token != "" {
		cfg.Token = cc.Token
	}
	if cc.TokenFile != "" {
		data, err := os.ReadFile(cc.TokenFile)
		if err != nil {
			return nil, err
		}
		cfg.Token = strings.TrimSpace(string(data))
	}
	client, err := consul.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	prefix := cc.Prefix
	if prefix == "" {
		prefix = defaultConsulPrefix
	}
	loggers.SetPrefix("[ConsulProjectStore]")
	loggers.Infof("Using Consul at %s", cc.Host)
	return &consulStore{client: client, prefix: prefix, loggers: loggers}, nil
}

func (s *consulStore) Name() string { return "Consul" }

func (s *consulStore) consulKey(key basictypes.ProjectKey) string {
	return s.prefix + "/" + storeKeyPrefix + "/" + string(key)
}

func (s *consulStore) Get(ctx context.Context, key basictypes.ProjectKey) (*dynconfig.ProjectState, error) {
	pair, _, err := s.client.KV().Get(s.consulKey(key), (&consul.QueryOptions{}).WithContext(ctx))
	if err != nil || pair == nil {
		return nil, err
	}
	return decodeState(pair.Value)
}

func (s *consulStore) Put(ctx context.Context, key basictypes.ProjectKey, state *dynconfig.ProjectState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	_, err = s.client.KV().Put(&consul.KVPair{Key: s.consulKey(key), Value: data},
		(&consul.WriteOptions{}).WithContext(ctx))
	return err
}

func (s *consulStore) Close() error {
	return nil
}
