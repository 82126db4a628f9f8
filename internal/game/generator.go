package game

import (
	"math"

	"github.com/mkarlsen/geocoin/internal/board"
	"github.com/mkarlsen/geocoin/internal/engine"
)

// Default world tuning. Overridable through Config; fixed for the process
// lifetime once the controller is constructed.
const (
	DefaultSpawnProbability = 0.1
	DefaultCoinScale        = 100
)

// Generator deterministically decides cache existence and contents per cell.
// Both decisions derive from the single luck value for (seed, cell key), so
// revisiting a cell with no persisted override always reproduces the same
// cache.
type Generator struct {
	seed             string
	spawnProbability float64
	coinScale        int
}

// NewGenerator creates a generator for the given world seed.
func NewGenerator(seed string, spawnProbability float64, coinScale int) *Generator {
	if spawnProbability <= 0 {
		spawnProbability = DefaultSpawnProbability
	}
	if coinScale <= 0 {
		coinScale = DefaultCoinScale
	}
	return &Generator{
		seed:             seed,
		spawnProbability: spawnProbability,
		coinScale:        coinScale,
	}
}

// ShouldSpawn reports whether a cache exists at the cell.
func (g *Generator) ShouldSpawn(cell board.Cell) bool {
	return engine.Luck(g.seed, cell.Key()) < g.spawnProbability
}

// Generate synthesizes the cache for a cell: ceil(luck * coinScale) coins
// with serials 0..count-1, each tagged with the originating cell. Pure
// function of the cell; the generator is only consulted when the store has
// no record for the cell.
func (g *Generator) Generate(cell board.Cell) Cache {
	luck := engine.Luck(g.seed, cell.Key())
	count := int(math.Ceil(luck * float64(g.coinScale)))

	coins := make([]Coin, count)
	for serial := range coins {
		coins[serial] = Coin{Cell: cell, Serial: serial}
	}
	return Cache{Cell: cell, Coins: coins}
}
