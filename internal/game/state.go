package game

// Authoritative per-run physics state. Owned by exactly one run and
// discarded on reset.

type PlayerBody struct {
	X, Y      float64
	VelocityY float64
	Airborne  bool
}

type Obstacle struct {
	X, Y          float64
	Width, Height float64
}

type State struct {
	Tick      int
	Score     int
	Speed     float64
	Player    PlayerBody
	Obstacles []Obstacle
}

// NewState returns a fresh run state with the player grounded at the
// start position.
func NewState() State {
	return State{
		Speed:  BaseSpeed,
		Player: PlayerBody{X: PlayerX, Y: GroundY},
	}
}
