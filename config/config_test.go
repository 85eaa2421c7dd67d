package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kotadb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("root_dir: /data/kotadb\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data/kotadb", cfg.RootDir)
	require.Equal(t, 3, cfg.BTreeDegree)
	require.Equal(t, "cosine", cfg.VectorMetric)
	require.Equal(t, DefaultSLA, cfg.SLA)
}

func TestLoadEnvOverridesLogLevelOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kotadb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))

	t.Setenv("KOTADB_LOG_LEVEL", "debug")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
