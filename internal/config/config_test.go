package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ValidateDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DataDir: dir}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join(dir, "cache"), cfg.CacheDir)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Workers)
	assert.Equal(t, defaultTopMerchants, cfg.TopMerchants)
	assert.Equal(t, int64(defaultOverflowMaxCost), cfg.OverflowMaxCost)
	assert.Equal(t, filepath.Join(dir, "dashboard.db"), cfg.ExportDB)
}

func TestConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing data dir", Config{}, common.ErrMissingConfig},
		{"negative rows", Config{DataDir: "x", Rows: -1}, common.ErrInvalidConfig},
		{"negative workers", Config{DataDir: "x", Workers: -2}, common.ErrInvalidConfig},
		{"negative top merchants", Config{DataDir: "x", TopMerchants: -1}, common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("data.dir", t.TempDir())
	v.Set("data.rows", 1000)
	v.Set("warmup.workers", 3)

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cfg.Rows)
	assert.Equal(t, 3, cfg.Workers)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("SPICEDASH_TEST_DIR", "/tmp/spice")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "data"), ExpandPath("~/data"))
	assert.Equal(t, "/tmp/spice/cache", ExpandPath("$SPICEDASH_TEST_DIR/cache"))
}
