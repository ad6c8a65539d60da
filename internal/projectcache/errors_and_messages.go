package projectcache

import (
	"errors"
	"fmt"

	"github.com/eventrelay/relay/internal/basictypes"
)

// All log messages, error singletons, and error constructors for this package should be collected here,
// except for debug logging.

const (
	logMsgFetchFailed        = "Failed to fetch project state for %s: %s"
	logMsgUsingStaleState    = "Using previous project state for %s after fetch failure: %s"
	logMsgStoreReadFailed    = "Failed to read project state for %s from %s: %s"
	logMsgStoreWriteFailed   = "Failed to write project state for %s to %s: %s"
	logMsgInvalidProject     = "Upstream returned an invalid project state for %s: %s"
	logMsgStaticLoaded       = "Loaded %d project states from %s"
	logMsgStaticBadFile      = "Ignoring project file %s: %s"
	logMsgReloadError        = "Reloading project files failed (error: %s)"
	logMsgReloadedData       = "Reloaded project states from %s"
	logMsgReloadNotFound     = "Project directory %s not found"
	logMsgNoMoreRetries      = "Giving up on reloading project files after repeated failures (last error: %s)"
	logMsgUsingDynamoDBTable = "Using DynamoDB table %s"
)

var errCacheClosed = errors.New("project cache was closed")

func errFetchFailed(key basictypes.ProjectKey, err error) error {
	return fmt.Errorf("failed to fetch project state for %s: %w", key, err)
}

func errCannotReadProjectDir(dir string, err error) error {
	return fmt.Errorf("unable to read project directory %s: %w", dir, err)
}

func errWatchFailed(dir string, err error) error {
	return fmt.Errorf("unable to watch project directory %s: %w", dir, err)
}

func errStoreNotConfigured(kind string) error {
	return fmt.Errorf("persistent store %s is selected but not configured", kind)
}
