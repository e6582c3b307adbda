package engine

import "testing"

func TestGenerateWorld_StartCell(t *testing.T) {
	grid, err := GenerateWorld(ScenarioProfile{GridSize: 10, ObstacleDensity: 0.3, VictimCount: 3, FireCount: 2, Seed: 42})
	if err != nil {
		t.Fatalf("GenerateWorld failed: %v", err)
	}

	if grid.At(0, 0).Type != Start {
		t.Errorf("start cell type = %q, want %q", grid.At(0, 0).Type, Start)
	}
	if grid.CountType(Start) != 1 {
		t.Errorf("start count = %d, want exactly 1", grid.CountType(Start))
	}
}

func TestGenerateWorld_Deterministic(t *testing.T) {
	scenario := ScenarioProfile{GridSize: 12, ObstacleDensity: 0.25, VictimCount: 4, FireCount: 3, Seed: 7}

	a, err := GenerateWorld(scenario)
	if err != nil {
		t.Fatalf("GenerateWorld failed: %v", err)
	}
	b, err := GenerateWorld(scenario)
	if err != nil {
		t.Fatalf("GenerateWorld failed: %v", err)
	}

	for i := range a.Cells {
		if a.Cells[i].Type != b.Cells[i].Type {
			t.Fatalf("cell %d differs between identically seeded worlds: %q vs %q",
				i, a.Cells[i].Type, b.Cells[i].Type)
		}
	}
}

func TestGenerateWorld_HazardsOutsideStartPatch(t *testing.T) {
	grid, err := GenerateWorld(ScenarioProfile{GridSize: 8, ObstacleDensity: 0, VictimCount: 5, FireCount: 5, Seed: 3})
	if err != nil {
		t.Fatalf("GenerateWorld failed: %v", err)
	}

	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			ct := grid.At(x, y).Type
			if ct == Victim || ct == Fire {
				t.Errorf("hazard %q placed inside starting 2x2 patch at (%d,%d)", ct, x, y)
			}
		}
	}

	if got := grid.CountType(Victim); got != 5 {
		t.Errorf("victim count = %d, want 5 on an empty grid", got)
	}
	if got := grid.CountType(Fire); got != 5 {
		t.Errorf("fire count = %d, want 5 on an empty grid", got)
	}
}

func TestGenerateWorld_AttemptCapShortfallIsSilent(t *testing.T) {
	// Minimum-size grid with every non-start cell an obstacle: no empty cell
	// exists, so rejection sampling exhausts the cap and places nothing.
	grid, err := GenerateWorld(ScenarioProfile{GridSize: 5, ObstacleDensity: 1.0, VictimCount: 10, FireCount: 10, Seed: 1})
	if err != nil {
		t.Fatalf("GenerateWorld should not error on placement shortfall: %v", err)
	}

	if got := grid.CountType(Victim); got != 0 {
		t.Errorf("victim count = %d, want 0 on a fully obstructed grid", got)
	}
	if got := grid.CountType(Fire); got != 0 {
		t.Errorf("fire count = %d, want 0 on a fully obstructed grid", got)
	}
}

func TestGenerateWorld_DensityOne(t *testing.T) {
	grid, err := GenerateWorld(ScenarioProfile{GridSize: 6, ObstacleDensity: 1.0, Seed: 11})
	if err != nil {
		t.Fatalf("GenerateWorld failed: %v", err)
	}

	for i := range grid.Cells {
		c := &grid.Cells[i]
		if c.X == 0 && c.Y == 0 {
			continue
		}
		if c.Type != Wall && c.Type != Debris {
			t.Errorf("cell (%d,%d) = %q, want wall or debris at density 1", c.X, c.Y, c.Type)
		}
	}
}

func TestGrid_FlushDirty(t *testing.T) {
	g := NewGrid(5)
	g.MarkDirty(1, 2)
	g.MarkDirty(1, 2)
	g.MarkDirty(3, 4)

	dirty := g.FlushDirty()
	if len(dirty) != 2 {
		t.Fatalf("dirty count = %d, want 2 (deduplicated)", len(dirty))
	}
	if dirty[0] != (Coord{1, 2}) || dirty[1] != (Coord{3, 4}) {
		t.Errorf("dirty = %v, want [(1,2) (3,4)]", dirty)
	}
	if got := g.FlushDirty(); got != nil {
		t.Errorf("second flush = %v, want nil", got)
	}
}
