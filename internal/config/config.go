// Package config loads the handful of runtime tunables that are
// legitimately configuration rather than spec constants: the default
// buffer-pool frame count, the replacement strategy tag, and a base
// directory setting (Storage.BaseDir). No package in this module reads
// BaseDir: table file names are used exactly as given. The on-disk page size is a
// compile-time constant (see pagefile.PageSize) and is never read from
// here.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the engine's runtime tunables.
type Config struct {
	Storage struct {
		BaseDir string `mapstructure:"base_dir"`
	} `mapstructure:"storage"`

	BufferPool struct {
		NumFrames int    `mapstructure:"num_frames"`
		Strategy  string `mapstructure:"strategy"`
	} `mapstructure:"buffer_pool"`
}

// Default returns the configuration used when no file is supplied: ten
// frames per table's buffer pool (matching the teacher's openTable
// default) and LRU replacement.
func Default() *Config {
	cfg := &Config{}
	cfg.Storage.BaseDir = "."
	cfg.BufferPool.NumFrames = 10
	cfg.BufferPool.Strategy = "LRU"
	return cfg
}

// Load reads a YAML configuration file at path and overlays it onto the
// defaults. A missing field in the file falls back to Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("storage.base_dir", cfg.Storage.BaseDir)
	v.SetDefault("buffer_pool.num_frames", cfg.BufferPool.NumFrames)
	v.SetDefault("buffer_pool.strategy", cfg.BufferPool.Strategy)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	return cfg, nil
}
