// Package config provides configuration loading for the dashboard core.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/spf13/viper"
)

const (
	defaultTopMerchants    = 20
	defaultOverflowMaxCost = 1 << 16
	defaultCacheDirName    = "cache"
)

// Config holds everything the data manager needs at startup.
type Config struct {
	// DataDir holds the raw CSV sources.
	DataDir string
	// CacheDir holds derived artifacts. Defaults to <DataDir>/cache.
	CacheDir string
	// Rows limits how many transaction rows are loaded. Zero loads all rows.
	// A change between runs invalidates the whole cache.
	Rows int64
	// Workers bounds the warm-up pool. Defaults to GOMAXPROCS.
	Workers int
	// TopMerchants is how many merchants get pre-cached rankings.
	TopMerchants int
	// OverflowMaxCost bounds the per-aggregator cache used after sealing.
	OverflowMaxCost int64
	// ExportDB is the SQLite file written by the export command.
	ExportDB string
}

// Validate fills defaults and rejects impossible values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data directory", common.ErrMissingConfig)
	}
	c.DataDir = ExpandPath(c.DataDir)
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.DataDir, defaultCacheDirName)
	}
	c.CacheDir = ExpandPath(c.CacheDir)
	if c.Rows < 0 {
		return fmt.Errorf("%w: rows must be >= 0, got %d", common.ErrInvalidConfig, c.Rows)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", common.ErrInvalidConfig, c.Workers)
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.TopMerchants < 0 {
		return fmt.Errorf("%w: top merchants must be >= 0, got %d", common.ErrInvalidConfig, c.TopMerchants)
	}
	if c.TopMerchants == 0 {
		c.TopMerchants = defaultTopMerchants
	}
	if c.OverflowMaxCost <= 0 {
		c.OverflowMaxCost = defaultOverflowMaxCost
	}
	if c.ExportDB == "" {
		c.ExportDB = filepath.Join(c.DataDir, "dashboard.db")
	}
	c.ExportDB = ExpandPath(c.ExportDB)
	return nil
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "./data")
	v.SetDefault("data.rows", 0)
	v.SetDefault("warmup.workers", 0)
	v.SetDefault("warmup.top_merchants", defaultTopMerchants)
	v.SetDefault("memo.overflow_max_cost", defaultOverflowMaxCost)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// FromViper reads a validated Config from v.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		DataDir:         v.GetString("data.dir"),
		CacheDir:        v.GetString("data.cache_dir"),
		Rows:            v.GetInt64("data.rows"),
		Workers:         v.GetInt("warmup.workers"),
		TopMerchants:    v.GetInt("warmup.top_merchants"),
		OverflowMaxCost: v.GetInt64("memo.overflow_max_cost"),
		ExportDB:        v.GetString("export.db"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, rest)
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}
