package xfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "logs/a.log"), ExpandTilde("~/logs/a.log"))
	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, "/var/log/a.log", ExpandTilde("/var/log/a.log"))
	assert.Equal(t, "~other/a", ExpandTilde("~other/a"))
}

func TestEnsureParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "mapbridge.log")
	require.NoError(t, EnsureParentDir(path))
	assert.DirExists(t, filepath.Dir(path))
}
