package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/credential"
	"github.com/eventrelay/relay/internal/dynconfig"
	"github.com/eventrelay/relay/internal/logging"
	"github.com/eventrelay/relay/internal/middleware"
	"github.com/eventrelay/relay/internal/projectcache"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

const (
	// projectConfigsWait is how long a request waits for states that are not cached. Keys that
	// take longer are reported as pending.
	projectConfigsWait = 5 * time.Second

	maxConcurrentLookups = 50

	msgFullConfigForbidden = "only internal relays may request full project configs"
)

type projectConfigResult struct {
	data    json.RawMessage
	pending bool
}

// getProjectConfigs serves project states to downstream relays. External relays only receive the
// states of projects that list them as trusted, and only the parts of the config they need to
// validate requests.
func (r *Relay) getProjectConfigs(w http.ResponseWriter, req *http.Request) {
	relay, _ := middleware.GetRelayInfo(req.Context())
	body, ok := middleware.ReadBody(w, req)
	if !ok {
		return
	}
	var request projectcache.ProjectConfigsRequest
	if err := json.Unmarshal(body, &request); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if request.FullConfig && !relay.Internal {
		middleware.WriteError(w, http.StatusForbidden, msgFullConfigForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), projectConfigsWait)
	defer cancel()

	var mu sync.Mutex
	results := make(map[basictypes.ProjectKey]projectConfigResult, len(request.PublicKeys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for _, key := range request.PublicKeys {
		key := key
		g.Go(func() error {
			result := r.lookupProjectConfig(gctx, key, relay, request.FullConfig)
			mu.Lock()
			results[key] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(writeProjectConfigsResponse(results))
}

func (r *Relay) lookupProjectConfig(
	ctx context.Context,
	key basictypes.ProjectKey,
	relay credential.RelayInfo,
	fullConfig bool,
) projectConfigResult {
	state, err := r.projects.GetProjectState(ctx, key)
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			logging.GetContextLoggers(ctx).Warnf("Failed to look up project %s for downstream relay: %s", key, err)
		}
		return projectConfigResult{pending: true}
	}
	if state.IsMissing() || state.Invalid {
		return projectConfigResult{}
	}
	if !relay.Internal && !isTrustedRelay(state, relay.PublicKey) {
		return projectConfigResult{}
	}
	if !fullConfig {
		state = limitedProjectState(state)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return projectConfigResult{}
	}
	return projectConfigResult{data: data}
}

func isTrustedRelay(state *dynconfig.ProjectState, pk credential.PublicKey) bool {
	encoded := pk.String()
	for _, trusted := range state.Config.TrustedRelays {
		if trusted == encoded {
			return true
		}
	}
	return false
}

// limitedProjectState strips everything from a state that a downstream relay does not need to
// validate and scrub requests.
func limitedProjectState(state *dynconfig.ProjectState) *dynconfig.ProjectState {
	limited := *state
	limited.Config = dynconfig.ProjectConfig{
		AllowedDomains: state.Config.AllowedDomains,
		TrustedRelays:  state.Config.TrustedRelays,
		PIIConfig:      state.Config.PIIConfig,
		Features:       state.Config.Features,
	}
	return &limited
}

// writeProjectConfigsResponse renders the response in key order. Keys without a state are null;
// pending keys are listed separately and omitted from the configs.
func writeProjectConfigsResponse(results map[basictypes.ProjectKey]projectConfigResult) []byte {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	w := jwriter.NewWriter()
	obj := w.Object()
	configs := obj.Name("configs").Object()
	var pending []string
	for _, k := range keys {
		result := results[basictypes.ProjectKey(k)]
		if result.pending {
			pending = append(pending, k)
			continue
		}
		if result.data == nil {
			configs.Name(k).Null()
		} else {
			configs.Name(k).Raw(result.data)
		}
	}
	configs.End()
	if len(pending) > 0 {
		arr := obj.Name("pending").Array()
		for _, k := range pending {
			arr.String(k)
		}
		arr.End()
	}
	obj.End()
	return w.Bytes()
}
