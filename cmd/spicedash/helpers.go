package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/config"
	"github.com/Veraticus/spice-dash/internal/data"
	"github.com/Veraticus/spice-dash/internal/warmup"
	"github.com/spf13/viper"
)

// envKeyReplacer maps data.cache_dir to SPICEDASH_DATA_CACHE_DIR.
var envKeyReplacer = strings.NewReplacer(".", "_")

func loadSettings() (config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		if errors.Is(err, common.ErrMissingConfig) || errors.Is(err, common.ErrInvalidConfig) {
			return config.Config{}, common.NewUserError("Configuration problem: "+err.Error(), err)
		}
		return config.Config{}, err
	}
	return cfg, nil
}

// startManager initializes the process-wide data manager.
func startManager(ctx context.Context, onDone func(warmup.Result)) (*data.Manager, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	m, err := data.Initialize(ctx, data.Config{
		Settings:   settings,
		Logger:     slog.Default(),
		OnTaskDone: onDone,
	})
	if err != nil {
		if errors.Is(err, common.ErrRawSourceMissing) {
			return nil, common.NewUserError(
				fmt.Sprintf("Raw data is missing from %s. Place the CSV sources there or pass --data-dir.", settings.DataDir), err)
		}
		return nil, fmt.Errorf("failed to start data manager: %w", err)
	}
	return m, nil
}

func optional[T any](set bool, v T) *T {
	if !set {
		return nil
	}
	return &v
}
