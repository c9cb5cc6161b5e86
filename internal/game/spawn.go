package game

import "math/rand"

// Generator spawns obstacles ahead of the play field. The only state it
// carries is the horizontal gap accumulated since the last spawn, which
// must advance by the current scroll speed every tick to stay in sync
// with obstacle motion. The spawn threshold is re-rolled on every check,
// so spacing never settles into a learnable rhythm while the gap floor
// keeps back-to-back placements out.
type Generator struct {
	gap float64
	rng *rand.Rand
}

// NewGenerator returns a generator primed to spawn on the first tick of
// a run, matching an empty field.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{gap: FieldWidth, rng: rng}
}

// TrySpawn emits a new obstacle at the right edge of the field when the
// accumulated gap exceeds a threshold in [MinSpawnGap, MinSpawnGap+SpawnGapSpan).
func (g *Generator) TrySpawn() (Obstacle, bool) {
	if g.gap <= MinSpawnGap+g.rng.Float64()*SpawnGapSpan {
		return Obstacle{}, false
	}
	g.gap = 0
	return Obstacle{
		X:      FieldWidth,
		Y:      ObstacleY,
		Width:  ObstacleWidth,
		Height: ObstacleMinHeight + g.rng.Float64()*ObstacleHeightSpan,
	}, true
}

// Advance accumulates scrolled distance since the last spawn.
func (g *Generator) Advance(scroll float64) {
	g.gap += scroll
}
