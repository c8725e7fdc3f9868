// Package config loads optional persisted flag defaults for zfsctool.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional zfsctool configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
}

// DefaultsConfig holds persistent flag defaults, overridden by any flag
// the caller passes explicitly on the command line.
type DefaultsConfig struct {
	TargetCodec    *string `toml:"target_codec"`
	MaxSize        *int64  `toml:"max_size"`
	Workers        *int    `toml:"workers"`
	ReverseWorkers *int    `toml:"reverse_workers"`
	ExclusiveIO    *bool   `toml:"exclusive_io"` // parsed but not applied; -j/-J alone select exclusive I/O
	QuickReset     *bool   `toml:"quick_reset"`
	Verify         *bool   `toml:"verify"`
	Backup         *bool   `toml:"backup"`
	BWLimit        *string `toml:"bwlimit"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "zfsctool", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. The config file is always
// optional; a malformed one is always an error.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}
