package sharedtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ConfigDir creates a relay configuration directory with an empty projects/ subdirectory. It is
// removed when the test ends.
func ConfigDir(t testing.TB) string {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "projects"), 0o700))
	return dir
}

// WriteStaticProject stores a project state where a static relay using configDir looks for key.
func WriteStaticProject(t testing.TB, configDir, key string, state []byte) {
	require.NoError(t, os.MkdirAll(filepath.Join(configDir, "projects"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "projects", key+".json"), state, 0o600))
}
