// Package loader turns the raw CSV sources into cleaned canonical tables.
//
// Each entity goes through three stages: the raw CSV, an intermediate
// columnar snapshot of the unmodified rows, and the cleaned snapshot. Once the
// cleaned snapshot is written the intermediate one is removed.
package loader

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-dash/internal/cache"
	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/geo"
	"github.com/Veraticus/spice-dash/internal/model"
	"github.com/jonboulle/clockwork"
)

// Raw source files under the data directory.
const (
	UsersFile         = "users_data.csv"
	TransactionsFile  = "transactions_data.csv"
	CardsFile         = "cards_data.csv"
	CategoryCodesFile = "mcc_codes.json"
	ZipCentroidsFile  = "zip_centroids.csv"
)

// Config configures a Loader.
type Config struct {
	Store    *cache.Store
	Clock    clockwork.Clock
	Geocoder geo.Geocoder
	Logger   *slog.Logger
	DataDir  string
}

// Validate fills defaults.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data directory", common.ErrMissingConfig)
	}
	if c.Store == nil {
		return errors.New("cache store is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	c.Logger = common.OrDefault(c.Logger)
	return nil
}

// Loader produces the canonical tables.
type Loader struct {
	cfg Config
}

// New creates a Loader. Without an explicit Geocoder the optional zip
// centroid file in the data directory is used.
func New(cfg Config) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Geocoder == nil {
		zips, err := geo.LoadZipTable(filepath.Join(cfg.DataDir, ZipCentroidsFile))
		if err != nil {
			return nil, err
		}
		if len(zips) == 0 {
			cfg.Logger.Warn("no zip centroids available, transactions will have no coordinates")
		}
		cfg.Geocoder = zips
	}
	return &Loader{cfg: cfg}, nil
}

type entity[Raw, Clean any] struct {
	parse        func(columns, []string) Raw
	clean        func(Raw) (Clean, error)
	name         string
	file         string
	intermediate string
	processed    string
}

// Users returns the cleaned users table.
func (l *Loader) Users(ctx context.Context) ([]model.User, error) {
	return load(ctx, l, entity[model.RawUser, model.User]{
		name:         "users",
		file:         UsersFile,
		intermediate: "users_data",
		processed:    cache.UsersProcessed,
		parse:        rawUser,
		clean:        func(r model.RawUser) (model.User, error) { return CleanUser(r, l.cfg.Clock) },
	}, 0)
}

// Transactions returns the cleaned transactions table limited to the first
// limit rows of the source (all rows when limit is 0).
func (l *Loader) Transactions(ctx context.Context, limit int64) ([]model.Transaction, error) {
	return load(ctx, l, entity[model.RawTransaction, model.Transaction]{
		name:         "transactions",
		file:         TransactionsFile,
		intermediate: "transactions_data",
		processed:    cache.TransactionsProcessed,
		parse:        rawTransaction,
		clean: func(r model.RawTransaction) (model.Transaction, error) {
			return CleanTransaction(r, l.cfg.Geocoder)
		},
	}, limit)
}

// Cards returns the cleaned cards table.
func (l *Loader) Cards(ctx context.Context) ([]model.Card, error) {
	return load(ctx, l, entity[model.RawCard, model.Card]{
		name:         "cards",
		file:         CardsFile,
		intermediate: "cards_data",
		processed:    cache.CardsProcessed,
		parse:        rawCard,
		clean:        CleanCard,
	}, 0)
}

func load[Raw, Clean any](ctx context.Context, l *Loader, e entity[Raw, Clean], limit int64) ([]Clean, error) {
	log := l.cfg.Logger.With("table", e.name)
	store := l.cfg.Store

	rows, err := cache.Load(store, e.processed, cache.Table[Clean]())
	if err == nil {
		log.Debug("loaded processed snapshot", "rows", len(rows))
		return rows, nil
	}
	if !cache.IsMiss(err) {
		return nil, err
	}

	start := l.cfg.Clock.Now()
	raw, err := cache.Load(store, e.intermediate, cache.Table[Raw]())
	if err != nil {
		if !cache.IsMiss(err) {
			return nil, err
		}
		raw, err = readCSV(ctx, filepath.Join(l.cfg.DataDir, e.file), limit, e.parse)
		if err != nil {
			return nil, err
		}
		// The intermediate snapshot only saves re-parsing; failing to write it is not fatal.
		_ = cache.Save(store, e.intermediate, cache.Table[Raw](), raw)
	}

	cleaned := make([]Clean, 0, len(raw))
	var skipped int
	for _, r := range raw {
		c, err := e.clean(r)
		if err != nil {
			skipped++
			log.Debug("skipping malformed row", "error", err)
			continue
		}
		cleaned = append(cleaned, c)
	}
	if skipped > 0 {
		log.Warn("skipped malformed rows", "skipped", skipped, "kept", len(cleaned))
	}

	if err := cache.Save(store, e.processed, cache.Table[Clean](), cleaned); err == nil {
		if err := store.Remove(e.intermediate, cache.TableExt); err != nil {
			log.Warn("failed to remove intermediate snapshot", "error", err)
		}
	}

	log.Info("built processed snapshot", "rows", len(cleaned), "duration", l.cfg.Clock.Since(start).Round(time.Millisecond))
	return cleaned, nil
}

// CategoryCodes reads the static merchant category code lookup. The file is
// a JSON object mapping code strings to group labels.
func (l *Loader) CategoryCodes() ([]model.CategoryCode, error) {
	path := filepath.Join(l.cfg.DataDir, CategoryCodesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrRawSourceMissing, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseCategoryCodes(data)
}

// ParseCategoryCodes decodes the code -> label JSON object, sorted by code.
func ParseCategoryCodes(data []byte) ([]model.CategoryCode, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode category codes: %w", err)
	}
	out := make([]model.CategoryCode, 0, len(raw))
	for k, v := range raw {
		code, err := strconv.ParseInt(strings.TrimSpace(k), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: category code %q", common.ErrMalformedRow, k)
		}
		out = append(out, model.CategoryCode{Code: int32(code), Group: strings.TrimSpace(v)})
	}
	slices.SortFunc(out, func(a, b model.CategoryCode) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}
