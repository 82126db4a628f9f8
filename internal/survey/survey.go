// Package survey scans rectangular cell regions for caches without touching
// game state. Scans run against the generator only, so they report the
// pristine world: persisted mutations are not reflected.
package survey

import (
	"context"
	"fmt"
	"sort"

	"github.com/mkarlsen/geocoin/internal/board"
	"github.com/mkarlsen/geocoin/internal/game"
)

const (
	// maxRegionCells caps a single scan; a full visibility neighborhood is
	// 289 cells, so this allows surveying ~30x that area per request.
	maxRegionCells = 250000

	defaultHitLimit = 100
)

// Request describes an inclusive cell rectangle to scan.
type Request struct {
	MinI int64 `json:"min_i"`
	MinJ int64 `json:"min_j"`
	MaxI int64 `json:"max_i"`
	MaxJ int64 `json:"max_j"`

	// Limit caps the number of hits returned (richest first).
	Limit int `json:"limit,omitempty"`
}

// Hit is one cell that spawns a cache.
type Hit struct {
	Cell  board.Cell `json:"cell"`
	Coins int        `json:"coins"`
}

// Result summarizes a region scan.
type Result struct {
	Hits       []Hit `json:"hits"`
	TotalCells int   `json:"total_cells"`
	CacheCells int   `json:"cache_cells"`
	TotalCoins int   `json:"total_coins"`

	// Truncated is set when the scan stopped early on context cancellation.
	Truncated bool `json:"truncated,omitempty"`
}

// Scanner surveys regions using a cache generator.
type Scanner struct {
	gen *game.Generator
}

// NewScanner creates a scanner over the given generator.
func NewScanner(gen *game.Generator) *Scanner {
	return &Scanner{gen: gen}
}

// Scan walks the region in row-major order, collecting every cell that
// spawns a cache. Hits are sorted by coin count descending and capped at
// req.Limit.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Result, error) {
	if req.MinI > req.MaxI || req.MinJ > req.MaxJ {
		return nil, fmt.Errorf("survey: inverted region (%d,%d)..(%d,%d)", req.MinI, req.MinJ, req.MaxI, req.MaxJ)
	}

	cells := (req.MaxI - req.MinI + 1) * (req.MaxJ - req.MinJ + 1)
	if cells > maxRegionCells {
		return nil, fmt.Errorf("survey: region of %d cells exceeds limit of %d", cells, maxRegionCells)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultHitLimit
	}

	result := &Result{}
	for i := req.MinI; i <= req.MaxI; i++ {
		select {
		case <-ctx.Done():
			result.Truncated = true
			return s.finish(result, limit), nil
		default:
		}

		for j := req.MinJ; j <= req.MaxJ; j++ {
			result.TotalCells++

			cell := board.Cell{I: i, J: j}
			if !s.gen.ShouldSpawn(cell) {
				continue
			}

			cache := s.gen.Generate(cell)
			result.CacheCells++
			result.TotalCoins += len(cache.Coins)
			result.Hits = append(result.Hits, Hit{Cell: cell, Coins: len(cache.Coins)})
		}
	}

	return s.finish(result, limit), nil
}

func (s *Scanner) finish(result *Result, limit int) *Result {
	sort.Slice(result.Hits, func(a, b int) bool {
		if result.Hits[a].Coins != result.Hits[b].Coins {
			return result.Hits[a].Coins > result.Hits[b].Coins
		}
		if result.Hits[a].Cell.I != result.Hits[b].Cell.I {
			return result.Hits[a].Cell.I < result.Hits[b].Cell.I
		}
		return result.Hits[a].Cell.J < result.Hits[b].Cell.J
	})
	if len(result.Hits) > limit {
		result.Hits = result.Hits[:limit]
	}
	return result
}
