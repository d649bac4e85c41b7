package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniappbot/pkg/config"
)

func TestNormalizeCLIArgs(t *testing.T) {
	got := normalizeCLIArgs([]string{"miniappbot", "--debug", "run", "--config", "/tmp/c.json", "--config=/x", "-d"})
	assert.Equal(t, []string{"miniappbot", "run"}, got)
}

func TestDetectConfigPathFromArgs(t *testing.T) {
	cases := map[string][]string{
		"/tmp/a.json": {"miniappbot", "run", "--config", "/tmp/a.json"},
		"/tmp/b.json": {"miniappbot", "--config=/tmp/b.json", "status"},
		"":            {"miniappbot", "status"},
	}
	for want, args := range cases {
		assert.Equal(t, want, detectConfigPathFromArgs(args), "args %v", args)
	}
}

func TestEnsureConfigOnboard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	result, err := ensureConfigOnboard(path, config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "created", result)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	result, err = ensureConfigOnboard(path, config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "overwritten", result)

	_, err = ensureConfigOnboard(path, nil)
	assert.Error(t, err)
}
