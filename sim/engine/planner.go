package engine

import "container/heap"

// Plan runs A* over the belief grid from start to target on the 4-connected
// grid (no diagonals). The returned path excludes start and includes target;
// it is empty if the target is unreachable.
//
// Traversability: a cell blocks search only if it is a revealed Wall.
// Unrevealed cells are optimistically traversable, which lets the planner
// route through fog of war toward frontier targets. Edge cost is the target
// cell's movement difficulty; the heuristic is Manhattan distance, admissible
// with no diagonal moves.
func Plan(start, target Coord, g *Grid) []Coord {
	if !g.InBounds(target.X, target.Y) || !g.InBounds(start.X, start.Y) {
		return nil
	}
	if start == target {
		return nil
	}
	if blocked(g, target) {
		return nil
	}

	open := &nodeHeap{}
	heap.Init(open)

	startIdx := start.Y*g.Size + start.X
	heap.Push(open, &node{
		pos:  start,
		g:    0,
		f:    float64(Manhattan(start, target)),
		seq:  0,
		from: -1,
	})

	// bestG tracks the cheapest known cost to each cell, realizing open-set
	// dominance: a candidate is discarded if a queued node at the same
	// coordinates already has g ≤ candidate's g.
	bestG := map[int]float64{startIdx: 0}
	cameFrom := make(map[int]int)
	closed := make(map[int]bool)
	seq := 0

	neighbors := [4]Coord{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		curIdx := cur.pos.Y*g.Size + cur.pos.X
		if closed[curIdx] {
			continue
		}
		closed[curIdx] = true

		if cur.pos == target {
			return reconstruct(g, cameFrom, startIdx, curIdx)
		}

		for _, d := range neighbors {
			nx, ny := cur.pos.X+d.X, cur.pos.Y+d.Y
			if !g.InBounds(nx, ny) {
				continue
			}
			next := Coord{X: nx, Y: ny}
			if blocked(g, next) {
				continue
			}
			nIdx := ny*g.Size + nx
			if closed[nIdx] {
				continue
			}

			stepCost := beliefDifficulty(g.At(nx, ny))
			tentative := cur.g + stepCost
			if known, ok := bestG[nIdx]; ok && known <= tentative {
				continue
			}
			bestG[nIdx] = tentative
			cameFrom[nIdx] = curIdx

			seq++
			heap.Push(open, &node{
				pos:  next,
				g:    tentative,
				f:    tentative + float64(Manhattan(next, target)),
				seq:  seq,
				from: curIdx,
			})
		}
	}

	return nil
}

// blocked reports whether the planner must route around the cell: only a
// revealed Wall blocks search.
func blocked(g *Grid, c Coord) bool {
	cell := g.At(c.X, c.Y)
	return cell.Type == Wall && cell.Revealed
}

// beliefDifficulty is the movement cost the planner assumes for a cell.
// Unrevealed cells are costed as Empty, consistent with the optimistic
// traversability rule.
func beliefDifficulty(cell *Cell) float64 {
	if !cell.Revealed {
		return movementDifficulty[Empty]
	}
	if d, ok := movementDifficulty[cell.Type]; ok {
		return d
	}
	// Revealed wall; unreachable because blocked() filters these.
	return movementDifficulty[Empty]
}

func reconstruct(g *Grid, cameFrom map[int]int, startIdx, endIdx int) []Coord {
	var rev []Coord
	for idx := endIdx; idx != startIdx; idx = cameFrom[idx] {
		rev = append(rev, Coord{X: idx % g.Size, Y: idx / g.Size})
	}
	path := make([]Coord, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}

// node is an A* open-set entry. seq breaks f-cost ties in discovery order so
// the search is stable and deterministic.
type node struct {
	pos  Coord
	g    float64
	f    float64
	seq  int
	from int
}

type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x interface{}) {
	*h = append(*h, x.(*node))
}

func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
