package projectcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/dynconfig"
	"github.com/eventrelay/relay/internal/metrics"
	"github.com/eventrelay/relay/internal/system"
	"github.com/eventrelay/relay/internal/upstream"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	// ProjectConfigsPath is the upstream endpoint that returns project states.
	ProjectConfigsPath = "/api/0/relays/projectconfigs/"

	projectConfigsVersion = "3"

	// DefaultBatchInterval is how long requests are collected before they are sent upstream.
	DefaultBatchInterval = 100 * time.Millisecond
	// DefaultBatchSize is the maximum number of keys in one upstream request.
	DefaultBatchSize = 500

	maxConcurrentBatches = 10
	requestQueueSize     = 1024
)

// ProjectConfigsRequest is the body of a project configs request.
type ProjectConfigsRequest struct {
	PublicKeys []basictypes.ProjectKey `json:"publicKeys"`
	FullConfig bool                    `json:"fullConfig"`
	NoCache    bool                    `json:"noCache,omitempty"`
}

// ProjectConfigsResponse is the body of a project configs response. A null config means the
// project does not exist; keys listed as pending should be requested again later.
type ProjectConfigsResponse struct {
	Configs map[basictypes.ProjectKey]json.RawMessage `json:"configs"`
	Pending []basictypes.ProjectKey                   `json:"pending,omitempty"`
}

type fetchResult struct {
	state   *dynconfig.ProjectState
	err     error
	pending bool
}

type fetchRequest struct {
	key    basictypes.ProjectKey
	sender system.Sender[fetchResult]
}

// UpstreamServiceName is the name of the batching service on the runner.
const UpstreamServiceName = "project_upstream"

// UpstreamSource fetches project states from the upstream in batches. Concurrent requests for the
// same key share one upstream lookup.
type UpstreamSource struct {
	relay         *upstream.Relay
	batchInterval time.Duration
	batchSize     int
	clock         clock.Clock
	loggers       ldlog.Loggers
	addr          system.Addr[fetchRequest]
}

// NewUpstreamSource starts the batching service on the runner.
func NewUpstreamSource(
	runner *system.ServiceRunner,
	relay *upstream.Relay,
	cacheConfig config.CacheConfig,
	clk clock.Clock,
	loggers ldlog.Loggers,
) *UpstreamSource {
	if clk == nil {
		clk = clock.New()
	}
	loggers.SetPrefix("[ProjectUpstream]")
	s := &UpstreamSource{
		relay:         relay,
		batchInterval: cacheConfig.BatchInterval.GetOrElse(DefaultBatchInterval),
		batchSize:     cacheConfig.BatchSize.GetOrElse(DefaultBatchSize),
		clock:         clk,
		loggers:       loggers,
	}
	s.addr = system.Spawn[fetchRequest](runner, UpstreamServiceName, s, requestQueueSize)
	return s
}

// FetchState waits for the next batch that includes key. Keys the upstream reports as pending are
// requested again in following batches until a state arrives or ctx ends.
func (s *UpstreamSource) FetchState(ctx context.Context, key basictypes.ProjectKey) (*dynconfig.ProjectState, error) {
	result, err := system.Request[fetchRequest, fetchResult](ctx, s.addr, func(sender system.Sender[fetchResult]) fetchRequest {
		return fetchRequest{key: key, sender: sender}
	})
	if err != nil {
		return nil, err
	}
	return result.state, result.err
}

// Start implements system.Service.
func (s *UpstreamSource) Start(ctx context.Context, rx <-chan fetchRequest) {
	ticker := s.clock.Ticker(s.batchInterval)
	defer ticker.Stop()

	waiting := make(map[basictypes.ProjectKey]*system.BroadcastChannel[fetchResult])
	inFlight := make(map[basictypes.ProjectKey]bool)
	resultsCh := make(chan map[basictypes.ProjectKey]fetchResult)

	for {
		select {
		case <-ctx.Done():
			for _, ch := range waiting {
				ch.Send(fetchResult{err: ctx.Err()})
			}
			return

		case req, ok := <-rx:
			if !ok {
				return
			}
			ch := waiting[req.key]
			if ch == nil {
				ch = &system.BroadcastChannel[fetchResult]{}
				waiting[req.key] = ch
			}
			ch.Attach(req.sender)

		case <-ticker.C:
			var keys []basictypes.ProjectKey
			for key := range waiting {
				if !inFlight[key] {
					keys = append(keys, key)
					inFlight[key] = true
				}
			}
			if len(keys) != 0 {
				go s.fetchBatches(ctx, keys, resultsCh)
			}

		case results := <-resultsCh:
			for key, result := range results {
				delete(inFlight, key)
				if result.pending {
					continue
				}
				if ch := waiting[key]; ch != nil {
					delete(waiting, key)
					ch.Send(result)
				}
			}
		}
	}
}

func (s *UpstreamSource) fetchBatches(
	ctx context.Context,
	keys []basictypes.ProjectKey,
	resultsCh chan<- map[basictypes.ProjectKey]fetchResult,
) {
	var g errgroup.Group
	g.SetLimit(maxConcurrentBatches)
	for start := 0; start < len(keys); start += s.batchSize {
		end := start + s.batchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]
		g.Go(func() error {
			results := s.fetchBatch(ctx, batch)
			select {
			case resultsCh <- results:
			case <-ctx.Done():
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *UpstreamSource) fetchBatch(ctx context.Context, keys []basictypes.ProjectKey) map[basictypes.ProjectKey]fetchResult {
	s.loggers.Debugf("Requesting %d project states from upstream", len(keys))
	results := make(map[basictypes.ProjectKey]fetchResult, len(keys))

	var resp ProjectConfigsResponse
	start := s.clock.Now()
	err := s.relay.SendJSON(ctx, ProjectConfigsPath+"?version="+projectConfigsVersion,
		ProjectConfigsRequest{PublicKeys: keys, FullConfig: true}, &resp)
	metrics.UpstreamRequestDuration.Record(ctx, s.clock.Since(start), ProjectConfigsPath)
	if err != nil {
		metrics.ProjectFetches.Add(ctx, int64(len(keys)), "upstream", "error")
		for _, key := range keys {
			results[key] = fetchResult{err: errFetchFailed(key, err)}
		}
		return results
	}
	metrics.ProjectFetches.Add(ctx, int64(len(keys)), "upstream", "ok")

	for _, key := range resp.Pending {
		results[key] = fetchResult{pending: true}
	}
	for _, key := range keys {
		if _, ok := results[key]; ok {
			continue
		}
		raw, ok := resp.Configs[key]
		if !ok || string(raw) == "null" {
			results[key] = fetchResult{state: dynconfig.MissingProjectState()}
			continue
		}
		state, err := dynconfig.ParseProjectState(raw)
		if err != nil {
			s.loggers.Errorf(logMsgInvalidProject, key, err)
			state = dynconfig.InvalidProjectState()
		}
		results[key] = fetchResult{state: state}
	}
	return results
}
