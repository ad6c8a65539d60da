package projectcache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/dynconfig"
	"github.com/eventrelay/relay/internal/metrics"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	// DefaultFileInterval is how long the static source waits before retrying a failed reload.
	DefaultFileInterval = 10 * time.Second

	maxRetriesIfDirNotChanged = 2
)

// StaticSource serves project states from <config dir>/projects/<project key>.json (or .yml) and
// reloads them whenever the directory changes.
type StaticSource struct {
	dir           string
	retryInterval time.Duration
	loggers       ldlog.Loggers

	mu     sync.RWMutex
	states map[basictypes.ProjectKey]json.RawMessage

	watcher   *fsnotify.Watcher
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewStaticSource reads all project files and starts watching the directory. A missing projects
// directory is not an error; it is watched once it appears in the config directory.
func NewStaticSource(configDir string, retryInterval time.Duration, loggers ldlog.Loggers) (*StaticSource, error) {
	dir, err := securejoin.SecureJoin(configDir, "projects")
	if err != nil {
		return nil, errCannotReadProjectDir(configDir, err)
	}
	s := &StaticSource{
		dir:           dir,
		retryInterval: retryInterval,
		loggers:       loggers,
		states:        make(map[basictypes.ProjectKey]json.RawMessage),
		closeCh:       make(chan struct{}),
	}
	if s.retryInterval <= 0 {
		s.retryInterval = DefaultFileInterval
	}
	s.loggers.SetPrefix("[StaticProjects]")

	states, err := readProjectDir(dir, s.loggers)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errCannotReadProjectDir(dir, err)
	}
	s.states = states
	s.loggers.Infof(logMsgStaticLoaded, len(states), dir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errWatchFailed(dir, err)
	}
	watchPath := dir
	if _, statErr := os.Stat(dir); statErr != nil {
		watchPath = configDir
	}
	if err := watcher.Add(watchPath); err != nil {
		_ = watcher.Close()
		return nil, errWatchFailed(watchPath, err)
	}
	s.watcher = watcher

	go s.run()
	return s, nil
}

// FetchState parses the file of key anew. Keys without a file are missing projects.
func (s *StaticSource) FetchState(_ context.Context, key basictypes.ProjectKey) (*dynconfig.ProjectState, error) {
	s.mu.RLock()
	raw, ok := s.states[key]
	s.mu.RUnlock()
	if !ok {
		metrics.ProjectFetches.Incr(context.Background(), "file", "missing")
		return dynconfig.MissingProjectState(), nil
	}
	metrics.ProjectFetches.Incr(context.Background(), "file", "ok")
	state, err := dynconfig.ParseProjectState(raw)
	if err != nil {
		return dynconfig.InvalidProjectState(), nil //nolint:nilerr
	}
	return state, nil
}

// Keys returns the keys of all loaded projects.
func (s *StaticSource) Keys() []basictypes.ProjectKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]basictypes.ProjectKey, 0, len(s.states))
	for k := range s.states {
		keys = append(keys, k)
	}
	return keys
}

// Close stops watching the directory.
func (s *StaticSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})
	return nil
}

func (s *StaticSource) run() {
	retryCh := make(chan struct{}, 1)
	needRetry := false
	retriedCount := 0
	var lastError error

	scheduleRetry := func() {
		s.loggers.Debug("Will schedule retry")
		needRetry = true
		time.AfterFunc(s.retryInterval, func() {
			select {
			case retryCh <- struct{}{}:
			default:
			}
		})
	}

	reload := func() {
		states, err := readProjectDir(s.dir, s.loggers)
		if err == nil {
			needRetry = false
			retriedCount = 0
			lastError = nil
			s.mu.Lock()
			s.states = states
			s.mu.Unlock()
			s.loggers.Infof(logMsgReloadedData, s.dir)
			return
		}
		if errors.Is(err, fs.ErrNotExist) {
			if lastError == nil {
				s.loggers.Warnf(logMsgReloadNotFound, s.dir)
			}
		} else {
			s.loggers.Warnf(logMsgReloadError, err)
		}
		lastError = err
		// A directory that is being copied into place can look broken for a moment, so a few
		// delayed retries are attempted even without further watch events.
		if retriedCount < maxRetriesIfDirNotChanged {
			retriedCount++
			scheduleRetry()
		} else {
			needRetry = false
			s.loggers.Errorf(logMsgNoMoreRetries, lastError)
		}
	}

	for {
		select {
		case <-s.closeCh:
			_ = s.watcher.Close()
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.loggers.Debugf("Got file watcher event: %+v", event)
			if event.Name == s.dir && event.Has(fsnotify.Create) {
				_ = s.watcher.Add(s.dir)
			}
			s.consumeExtraEvents()
			retriedCount = 0
			reload()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.loggers.Warnf("File watcher error: %s", err)

		case <-retryCh:
			if needRetry {
				s.loggers.Debug("Got retry signal")
				reload()
			}
		}
	}
}

func (s *StaticSource) consumeExtraEvents() {
	for {
		select {
		case <-s.watcher.Events:
		default:
			return
		}
	}
}

func readProjectDir(dir string, loggers ldlog.Loggers) (map[basictypes.ProjectKey]json.RawMessage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return map[basictypes.ProjectKey]json.RawMessage{}, err
	}
	states := make(map[basictypes.ProjectKey]json.RawMessage, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".json" && ext != ".yml" && ext != ".yaml" {
			continue
		}
		key, err := basictypes.ParseProjectKey(strings.TrimSuffix(name, ext))
		if err != nil {
			loggers.Warnf(logMsgStaticBadFile, name, err)
			continue
		}
		path, err := securejoin.SecureJoin(dir, name)
		if err != nil {
			loggers.Warnf(logMsgStaticBadFile, name, err)
			continue
		}
		data, err := os.ReadFile(path) //nolint:gosec
		if err != nil {
			return nil, err
		}
		if ext != ".json" {
			if data, err = yamlToJSON(data); err != nil {
				loggers.Warnf(logMsgStaticBadFile, name, err)
				continue
			}
		}
		if _, err := dynconfig.ParseProjectState(data); err != nil {
			loggers.Warnf(logMsgStaticBadFile, name, err)
		}
		states[key] = data
	}
	return states, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var value interface{}
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(value))
}

// yaml.v3 falls back to map[interface{}]interface{} for mappings with non-string keys, which
// encoding/json rejects.
func normalizeYAML(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		for k, inner := range v {
			v[k] = normalizeYAML(inner)
		}
		return v
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[toString(k)] = normalizeYAML(inner)
		}
		return out
	case []interface{}:
		for i, inner := range v {
			v[i] = normalizeYAML(inner)
		}
		return v
	}
	return value
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, _ := json.Marshal(v)
	return string(data)
}
