package engine

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateWorld builds the ground-truth grid for a scenario.
//
// Start is always (0,0). Each non-Start cell becomes an obstacle (Wall or
// Debris, chosen uniformly) with probability ObstacleDensity. Victims and
// fires are rejection-sampled onto Empty cells outside the initial 2×2
// revealed patch; if PlacementAttemptCap is exhausted the scenario silently
// contains fewer hazards than requested.
func GenerateWorld(scenario ScenarioProfile) (*Grid, error) {
	scenario.Clamp()
	if scenario.GridSize < MinGridSize || scenario.GridSize > MaxGridSize {
		return nil, fmt.Errorf("world generation: grid size %d out of range [%d,%d]",
			scenario.GridSize, MinGridSize, MaxGridSize)
	}

	seed := scenario.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	g := NewGrid(scenario.GridSize)

	for y := 0; y < g.Size; y++ {
		for x := 0; x < g.Size; x++ {
			if x == 0 && y == 0 {
				continue
			}
			if rng.Float64() < scenario.ObstacleDensity {
				if rng.Float64() < 0.5 {
					g.At(x, y).Type = Wall
				} else {
					g.At(x, y).Type = Debris
				}
			}
		}
	}

	placeHazards(g, rng, Victim, scenario.VictimCount)
	placeHazards(g, rng, Fire, scenario.FireCount)

	return g, nil
}

// placeHazards rejection-samples count cells of the given type onto Empty
// cells outside the starting 2×2 patch, bounded by PlacementAttemptCap.
func placeHazards(g *Grid, rng *rand.Rand, ct CellType, count int) {
	placed := 0
	for attempt := 0; attempt < PlacementAttemptCap && placed < count; attempt++ {
		x := rng.Intn(g.Size)
		y := rng.Intn(g.Size)
		if x < 2 && y < 2 {
			continue
		}
		cell := g.At(x, y)
		if cell.Type != Empty {
			continue
		}
		cell.Type = ct
		placed++
	}
}
