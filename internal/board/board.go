// Package board maps continuous geographic coordinates onto a discrete grid
// of canonically-identified cells.
package board

import (
	"fmt"
	"math"
)

// Point is a continuous geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Cell identifies one grid tile. The tile covers the half-open square
// [I*tileWidth, (I+1)*tileWidth) x [J*tileWidth, (J+1)*tileWidth).
type Cell struct {
	I int64 `json:"i"`
	J int64 `json:"j"`
}

// Key returns the canonical string key "i,j" for the cell. Persisted records
// and luck derivation are both keyed by this string, so its format is frozen.
func (c Cell) Key() string {
	return fmt.Sprintf("%d,%d", c.I, c.J)
}

// CellID is the index of a canonical cell record within a Board. Two lookups
// of the same coordinates always yield the same CellID, so identity
// comparison is integer comparison.
type CellID int

// Bounds is the half-open rectangle covered by a cell.
type Bounds struct {
	SouthWest Point `json:"south_west"`
	NorthEast Point `json:"north_east"`
}

// Board canonicalizes grid coordinates into cell identities. Cell records
// live in an append-only arena indexed by CellID; the coordinate lookup table
// guarantees one record per coordinate pair. Records are never evicted for
// the lifetime of the board.
type Board struct {
	tileWidth float64
	radius    int

	cells []Cell
	index map[Cell]CellID
}

// New creates a board with the given tile width (coordinate units per cell
// edge) and visibility radius (cells per axis considered near a point).
func New(tileWidth float64, radius int) *Board {
	return &Board{
		tileWidth: tileWidth,
		radius:    radius,
		index:     make(map[Cell]CellID),
	}
}

// TileWidth returns the edge length of one cell in coordinate units.
func (b *Board) TileWidth() float64 {
	return b.tileWidth
}

// Radius returns the visibility radius in cells.
func (b *Board) Radius() int {
	return b.radius
}

// Len returns the number of canonical cells created so far.
func (b *Board) Len() int {
	return len(b.cells)
}

// Canonicalize returns the CellID for grid coordinates (i, j), creating the
// cell record on first sight.
func (b *Board) Canonicalize(i, j int64) CellID {
	cell := Cell{I: i, J: j}
	if id, ok := b.index[cell]; ok {
		return id
	}

	id := CellID(len(b.cells))
	b.cells = append(b.cells, cell)
	b.index[cell] = id
	return id
}

// CellAt returns the cell record for a previously issued CellID.
func (b *Board) CellAt(id CellID) Cell {
	return b.cells[id]
}

// CellForPoint returns the cell enclosing the point. Floor division keeps
// negative coordinates inside their enclosing tile instead of straddling
// zero the way truncation would.
func (b *Board) CellForPoint(p Point) CellID {
	i := int64(math.Floor(p.Lat / b.tileWidth))
	j := int64(math.Floor(p.Lng / b.tileWidth))
	return b.Canonicalize(i, j)
}

// CellBounds returns the half-open rectangle covered by the cell.
func (b *Board) CellBounds(id CellID) Bounds {
	cell := b.cells[id]
	return Bounds{
		SouthWest: Point{
			Lat: float64(cell.I) * b.tileWidth,
			Lng: float64(cell.J) * b.tileWidth,
		},
		NorthEast: Point{
			Lat: float64(cell.I+1) * b.tileWidth,
			Lng: float64(cell.J+1) * b.tileWidth,
		},
	}
}

// CellsNearPoint returns all cells in the square of side 2*radius+1 centered
// on the point's cell, in row-major scan order.
func (b *Board) CellsNearPoint(p Point) []CellID {
	center := b.CellAt(b.CellForPoint(p))
	r := int64(b.radius)

	ids := make([]CellID, 0, (2*r+1)*(2*r+1))
	for di := -r; di <= r; di++ {
		for dj := -r; dj <= r; dj++ {
			ids = append(ids, b.Canonicalize(center.I+di, center.J+dj))
		}
	}
	return ids
}
