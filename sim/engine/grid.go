package engine

// Grid is an N×N cell array stored flat, indexed by y*N+x. The grid is owned
// exclusively by the mission scheduler; mutation happens in place through
// Perception (reveal) and the executor (hazard clears), each of which records
// the touched cells in the dirty list.
type Grid struct {
	Size  int    `json:"size"`
	Cells []Cell `json:"cells"`

	// dirty collects indexes of cells mutated since the last FlushDirty.
	dirty []int
}

// NewGrid returns an all-Empty grid of the given size with Start at (0,0).
func NewGrid(size int) *Grid {
	g := &Grid{
		Size:  size,
		Cells: make([]Cell, size*size),
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			g.Cells[y*size+x] = Cell{X: x, Y: y, Type: Empty}
		}
	}
	g.Cells[0].Type = Start
	return g
}

// InBounds reports whether (x, y) lies on the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Size && y >= 0 && y < g.Size
}

// At returns the cell at (x, y). Callers must bounds-check first.
func (g *Grid) At(x, y int) *Cell {
	return &g.Cells[y*g.Size+x]
}

// MarkDirty records a cell mutation for the current tick.
func (g *Grid) MarkDirty(x, y int) {
	g.dirty = append(g.dirty, y*g.Size+x)
}

// FlushDirty returns the coordinates mutated since the previous flush and
// clears the list.
func (g *Grid) FlushDirty() []Coord {
	if len(g.dirty) == 0 {
		return nil
	}
	out := make([]Coord, 0, len(g.dirty))
	seen := make(map[int]struct{}, len(g.dirty))
	for _, idx := range g.dirty {
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, Coord{X: idx % g.Size, Y: idx / g.Size})
	}
	g.dirty = g.dirty[:0]
	return out
}

// Clone returns a deep copy of the grid without the dirty list.
func (g *Grid) Clone() *Grid {
	cp := &Grid{
		Size:  g.Size,
		Cells: make([]Cell, len(g.Cells)),
	}
	copy(cp.Cells, g.Cells)
	return cp
}

// RevealedCount returns the number of revealed cells.
func (g *Grid) RevealedCount() int {
	n := 0
	for i := range g.Cells {
		if g.Cells[i].Revealed {
			n++
		}
	}
	return n
}

// CountType returns the number of cells of the given type.
func (g *Grid) CountType(ct CellType) int {
	n := 0
	for i := range g.Cells {
		if g.Cells[i].Type == ct {
			n++
		}
	}
	return n
}
