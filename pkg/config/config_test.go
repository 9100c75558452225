package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/burritoOverflow/sdb/pkg/config"
)

func TestLoadMissingFileYieldsEmptyConfig(t *testing.T) {
	t.Setenv("SDB_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.yml"))

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, cfg.ParsedLogLevel())
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	contents := "log_level: debug\ndefault_catch_syscalls: [59, 60]\nelf_search_paths: [/usr/lib/debug]\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	t.Setenv("SDB_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, cfg.ParsedLogLevel())
	require.Equal(t, []int{59, 60}, cfg.DefaultCatchSyscalls)
	require.Equal(t, []string{"/usr/lib/debug"}, cfg.ElfSearchPaths)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: [this is not a scalar"), 0o644))
	t.Setenv("SDB_CONFIG", path)

	_, err := config.Load()
	require.Error(t, err)
}

func TestUnrecognizedLogLevelFallsBackToInfo(t *testing.T) {
	cfg := &config.Config{LogLevel: "not-a-level"}
	require.Equal(t, logrus.InfoLevel, cfg.ParsedLogLevel())
}
