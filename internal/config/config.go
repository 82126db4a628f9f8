// Package config loads server and world settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds everything fixed at startup. World tuning (tile width,
// radius, probabilities) is not runtime-mutable; changing the seed or grid
// constants against an existing database produces a different world, so the
// store keeps the seed it was created with.
type Config struct {
	Addr   string `env:"GEOCOIN_ADDR" envDefault:"127.0.0.1:8090"`
	DBPath string `env:"GEOCOIN_DB_PATH" envDefault:"geocoin.db"`

	WorldLabel string `env:"GEOCOIN_WORLD" envDefault:"default"`
	WorldSeed  string `env:"GEOCOIN_WORLD_SEED" envDefault:"geocoin-carrier-v1"`

	TileWidth        float64 `env:"GEOCOIN_TILE_WIDTH" envDefault:"0.0001"`
	VisibilityRadius int     `env:"GEOCOIN_VISIBILITY_RADIUS" envDefault:"8"`
	SpawnProbability float64 `env:"GEOCOIN_SPAWN_PROBABILITY" envDefault:"0.1"`
	CoinScale        int     `env:"GEOCOIN_COIN_SCALE" envDefault:"100"`

	// WithdrawOrder selects which coin a deposit hands over: "lifo" (the
	// most recently collected) or "fifo" (the oldest).
	WithdrawOrder string `env:"GEOCOIN_WITHDRAW_ORDER" envDefault:"lifo"`

	StartLat float64 `env:"GEOCOIN_START_LAT" envDefault:"36.98949379578401"`
	StartLng float64 `env:"GEOCOIN_START_LNG" envDefault:"-122.06277128548504"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges that env parsing cannot express.
func (c Config) Validate() error {
	if c.TileWidth <= 0 {
		return fmt.Errorf("config: tile width must be positive, got %g", c.TileWidth)
	}
	if c.VisibilityRadius < 1 {
		return fmt.Errorf("config: visibility radius must be at least 1, got %d", c.VisibilityRadius)
	}
	if c.SpawnProbability <= 0 || c.SpawnProbability > 1 {
		return fmt.Errorf("config: spawn probability must be in (0, 1], got %g", c.SpawnProbability)
	}
	if c.CoinScale < 1 {
		return fmt.Errorf("config: coin scale must be at least 1, got %d", c.CoinScale)
	}
	if c.WithdrawOrder != "lifo" && c.WithdrawOrder != "fifo" {
		return fmt.Errorf("config: withdraw order must be lifo or fifo, got %q", c.WithdrawOrder)
	}
	return nil
}

// InventoryFIFO reports whether deposits hand over the oldest coin first.
func (c Config) InventoryFIFO() bool {
	return c.WithdrawOrder == "fifo"
}
