package game

import (
	"math"
	"math/rand"
)

// RunState is the run lifecycle state machine. GameOver is always
// re-enterable; there is no terminal state.
type RunState int

const (
	StateMenu RunState = iota
	StatePlaying
	StateGameOver
)

func (s RunState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StateGameOver:
		return "game_over"
	default:
		return "menu"
	}
}

// TickEvents reports what one tick produced.
type TickEvents struct {
	Score    int
	Collided bool
	Notice   bool // score crossed a notice threshold this tick
}

// Loop owns the per-run update order: physics integration, spawning,
// obstacle advance, collision check, score and speed update. It carries
// no timer of its own; the caller drives Tick at display-refresh cadence
// from a single goroutine.
type Loop struct {
	state RunState
	world State
	gen   *Generator
	rng   *rand.Rand
}

func NewLoop(rng *rand.Rand) *Loop {
	return &Loop{
		state: StateMenu,
		world: NewState(),
		gen:   NewGenerator(rng),
		rng:   rng,
	}
}

// Start resets all run state and transitions to Playing. Valid from any
// state; a paused run is never resumed, only restarted.
func (l *Loop) Start() {
	l.world = NewState()
	l.gen = NewGenerator(l.rng)
	l.state = StatePlaying
}

// Pause transitions Playing to Menu. State is kept but a later Start
// always fully resets.
func (l *Loop) Pause() {
	if l.state == StatePlaying {
		l.state = StateMenu
	}
}

// Jump sets the upward velocity if the player is grounded. A no-op, not
// an error, while airborne or outside Playing; the grounded check is
// exact equality with the ground line.
func (l *Loop) Jump() bool {
	p := &l.world.Player
	if l.state != StatePlaying || p.Airborne || p.Y != GroundY {
		return false
	}
	p.VelocityY = JumpVelocity
	p.Airborne = true
	return true
}

// Tick advances the run by one frame. Outside Playing it does nothing.
// A collision transitions to GameOver before the score update, so the
// colliding tick scores no point.
func (l *Loop) Tick() TickEvents {
	var ev TickEvents
	if l.state != StatePlaying {
		ev.Score = l.world.Score
		return ev
	}
	w := &l.world
	w.Tick++

	p := &w.Player
	p.VelocityY += GravityPerTick
	p.Y += p.VelocityY
	if p.Y >= GroundY {
		p.Y = GroundY
		p.VelocityY = 0
		p.Airborne = false
	}

	if ob, ok := l.gen.TrySpawn(); ok {
		w.Obstacles = append(w.Obstacles, ob)
	}

	scroll := w.Speed * ScrollFactor
	live := w.Obstacles[:0]
	for _, ob := range w.Obstacles {
		ob.X -= scroll
		if ob.X > -ob.Width {
			live = append(live, ob)
		}
	}
	w.Obstacles = live

	pb := p.Bounds()
	for _, ob := range w.Obstacles {
		if Collides(pb, ob.Bounds()) {
			l.state = StateGameOver
			ev.Collided = true
			ev.Score = w.Score
			return ev
		}
	}

	w.Score++
	if w.Score%NoticeInterval == 0 {
		ev.Notice = true
	}
	w.Speed = math.Min(MaxSpeed, BaseSpeed+float64(w.Score)*SpeedPerPoint)
	l.gen.Advance(w.Speed * ScrollFactor)
	ev.Score = w.Score
	return ev
}

// State returns the current run lifecycle state.
func (l *Loop) State() RunState { return l.state }

// Score returns the current run score.
func (l *Loop) Score() int { return l.world.Score }

// World exposes the physics state for rendering. Callers must not hold
// the pointer across ticks from another goroutine.
func (l *Loop) World() *State { return &l.world }
