// Package game implements the geocoin world: deterministic cache generation
// over a cell grid, the player inventory, and the controller that owns all
// mutable state.
package game

import (
	"fmt"

	"github.com/mkarlsen/geocoin/internal/board"
)

// Coin is a collectible. Cell and Serial record the cache that minted it;
// they are provenance only and never change as the coin moves between
// inventories. Serials are unique within one cache at mint time, not
// globally.
type Coin struct {
	Cell   board.Cell `json:"cell"`
	Serial int        `json:"serial"`
}

// ID returns the display identity "i,j#serial".
func (c Coin) ID() string {
	return fmt.Sprintf("%s#%d", c.Cell.Key(), c.Serial)
}

// Cache is a cell's coin container. Coins keep insertion order; deposits
// append at the end and withdrawals take from the end.
type Cache struct {
	Cell  board.Cell `json:"cell"`
	Coins []Coin     `json:"coins"`
}

// Player holds the continuous location and the coin inventory.
type Player struct {
	Location  board.Point `json:"location"`
	Inventory []Coin      `json:"inventory"`
}

// Store persists caches and the player between sessions. LoadCache and
// LoadPlayer return (nil, nil) when no record exists or the stored value
// cannot be decoded; callers fall back to generation or defaults.
type Store interface {
	SaveCache(cache Cache) error
	LoadCache(cell board.Cell) (*Cache, error)
	SavePlayer(player Player) error
	LoadPlayer() (*Player, error)
	Reset() error
}
