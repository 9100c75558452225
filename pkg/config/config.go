// Package config loads sdb's persistent CLI preferences from a YAML
// file: log level, default syscall catch list, and ELF search paths.
package config

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/burritoOverflow/sdb/pkg/sdberr"
)

var log = logrus.WithField("pkg", "config")

// Config is the on-disk shape of ~/.config/sdb/config.yml (or
// $SDB_CONFIG). Every field is optional; the zero value is a valid,
// empty configuration.
type Config struct {
	LogLevel            string   `yaml:"log_level"`
	DefaultCatchSyscalls []int   `yaml:"default_catch_syscalls"`
	ElfSearchPaths      []string `yaml:"elf_search_paths"`
}

// Path resolves the configuration file location: $SDB_CONFIG if set,
// otherwise ~/.config/sdb/config.yml.
func Path() string {
	if p := os.Getenv("SDB_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sdb", "config.yml")
}

// Load reads and parses the configuration file at Path(). A missing
// file is not an error: it yields the zero Config, matching a CLI's
// expectation that configuration is entirely optional.
func Load() (*Config, error) {
	path := Path()
	if path == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		wrapped := sdberr.NewOS("read config", err)
		log.WithError(wrapped).Warn("failed to read configuration file")
		return nil, wrapped
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		wrapped := sdberr.NewFormat("failed to parse configuration file %q: %v", path, err)
		log.WithError(wrapped).Warn("failed to parse configuration file")
		return nil, wrapped
	}
	return &cfg, nil
}

// ParsedLogLevel resolves the configured log level, falling back to
// logrus.InfoLevel when unset or unrecognized.
func (c *Config) ParsedLogLevel() logrus.Level {
	if c == nil || c.LogLevel == "" {
		return logrus.InfoLevel
	}
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithError(err).Warnf("unrecognized log level %q, defaulting to info", c.LogLevel)
		return logrus.InfoLevel
	}
	return lvl
}
