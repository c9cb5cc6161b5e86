package session

import "github.com/geometry-runner/internal/game"

// Conn delivers encoded frames to the connected player. Send must not
// block indefinitely; a failed send tears the session down.
type Conn interface {
	Send(b []byte) error
	Close() error
}

// Commands posted to Session.Inbox.

// Start begins a fresh run, resetting all run state.
type Start struct{}

// Jump requests a jump. Ignored while airborne or outside a run.
type Jump struct{}

// Pause returns a running session to the menu.
type Pause struct{}

// Leave is issued on disconnect.
type Leave struct{}

// Frame type tags on outgoing messages.
const (
	FrameState    = "state"
	FrameNotice   = "notice"
	FrameGameOver = "game_over"
)

// StateFrame is a snapshot of the run, broadcast at the configured
// broadcast rate and after every lifecycle transition.
type StateFrame struct {
	Type      string          `json:"type"`
	Tick      int             `json:"tick"`
	RunState  string          `json:"run_state"`
	Score     int             `json:"score"`
	Best      int             `json:"best"`
	Speed     float64         `json:"speed"`
	Player    PlayerFrame     `json:"player"`
	Obstacles []ObstacleFrame `json:"obstacles"`
}

type PlayerFrame struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Airborne bool    `json:"airborne"`
}

type ObstacleFrame struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NoticeFrame marks a score milestone mid-run.
type NoticeFrame struct {
	Type    string `json:"type"`
	Score   int    `json:"score"`
	Message string `json:"message"`
}

// GameOverFrame carries the finished run's summary. It is sent before
// the durable submission completes; the summary is valid regardless of
// the submission outcome.
type GameOverFrame struct {
	Type    string       `json:"type"`
	Summary game.Summary `json:"summary"`
}
