// Package session hosts authoritative single-player runs. Each
// connected player gets one Session: an actor that owns its game loop,
// consumes commands from an inbox and drives the simulation from a
// ticker, all on a single goroutine.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/geometry-runner/internal/domain"
	"github.com/geometry-runner/internal/game"
	"github.com/geometry-runner/internal/metrics"
)

// Config carries the session timing knobs.
type Config struct {
	TickHz        int
	BroadcastHz   int
	SubmitTimeout time.Duration
}

// Submitter appends a finished run to the durable score log.
type Submitter interface {
	SubmitScore(ctx context.Context, sub domain.ScoreSubmission) error
}

// Session simulates one player's runs. All loop and keeper access
// happens on the Run goroutine; other goroutines interact only through
// Inbox and Stop.
type Session struct {
	Inbox chan any

	// OnClose is called once after the session goroutine exits.
	OnClose func()

	id       string
	playerID string
	conn     Conn
	loop     *game.Loop
	keeper   *game.ScoreKeeper
	submit   Submitter
	cfg      Config
	logger   *slog.Logger

	broadcastEvery int
	runStarted     time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	submits  sync.WaitGroup
}

// New creates a session for one connection. The keeper must already be
// loaded with the player's local best.
func New(id, playerID string, conn Conn, keeper *game.ScoreKeeper, submit Submitter, cfg Config, logger *slog.Logger) *Session {
	broadcastEvery := cfg.TickHz / cfg.BroadcastHz
	if broadcastEvery <= 0 {
		broadcastEvery = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		Inbox:          make(chan any, 64),
		id:             id,
		playerID:       playerID,
		conn:           conn,
		loop:           game.NewLoop(rand.New(rand.NewSource(time.Now().UnixNano()))),
		keeper:         keeper,
		submit:         submit,
		cfg:            cfg,
		logger:         logger.With("session_id", id, "player_id", playerID),
		broadcastEvery: broadcastEvery,
		ctx:            ctx,
		cancel:         cancel,
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Done is closed once the session goroutine has exited and any
// in-flight score submission has completed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop tears the session down. Safe to call more than once and from
// any goroutine. In-flight score submissions keep their own timeout
// and are not cancelled.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
}

// Run drives the session until Stop. The menu state ticks too, so a
// queued command never waits on run activity.
func (s *Session) Run() {
	defer func() {
		s.cancel()
		_ = s.conn.Close()
		// A just-finished run may still be writing to the score log;
		// its own timeout bounds the wait.
		s.submits.Wait()
		if s.OnClose != nil {
			s.OnClose()
		}
		close(s.done)
	}()

	s.sendState()

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.TickHz))
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case cmd := <-s.Inbox:
			if !s.handleCommand(cmd) {
				return
			}
		case <-ticker.C:
			if s.loop.State() != game.StatePlaying {
				continue
			}
			started := time.Now()
			ev := s.loop.Tick()
			metrics.ObserveTickDuration(time.Since(started))

			if ev.Collided {
				s.finishRun(ev.Score)
				continue
			}
			if ev.Notice {
				s.sendNotice(ev.Score)
			}
			if s.loop.World().Tick%s.broadcastEvery == 0 {
				if !s.sendState() {
					return
				}
			}
		}
	}
}

// handleCommand applies one inbox command. Returns false when the
// session should exit.
func (s *Session) handleCommand(cmd any) bool {
	switch cmd.(type) {
	case Start:
		s.loop.Start()
		s.runStarted = time.Now()
		return s.sendState()
	case Jump:
		s.loop.Jump()
		return true
	case Pause:
		s.loop.Pause()
		return s.sendState()
	case Leave:
		return false
	default:
		s.logger.Warn("unknown session command", "command", fmt.Sprintf("%T", cmd))
		return true
	}
}

// finishRun finalizes the local summary, tells the player, and hands
// the run to the score log on a separate goroutine so a slow store
// never stalls the actor.
func (s *Session) finishRun(score int) {
	duration := int(time.Since(s.runStarted).Seconds())

	sum, err := s.keeper.Finalize(s.ctx, score)
	if err != nil {
		s.logger.Warn("failed to persist local best", "error", err)
	}
	s.send(GameOverFrame{Type: FrameGameOver, Summary: sum})
	s.sendState()

	sub := domain.ScoreSubmission{
		PlayerID:       s.playerID,
		Score:          sum.Score,
		Stars:          sum.Stars,
		LevelCompleted: sum.Level,
		GameDuration:   duration,
	}
	s.submits.Add(1)
	go func() {
		defer s.submits.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SubmitTimeout)
		defer cancel()
		if err := s.submit.SubmitScore(ctx, sub); err != nil {
			s.logger.Warn("score submission failed", "score", sub.Score, "error", err)
		}
	}()
}

func (s *Session) sendNotice(score int) {
	s.send(NoticeFrame{
		Type:    FrameNotice,
		Score:   score,
		Message: fmt.Sprintf("Congratulations! You've reached %d points!", score),
	})
}

func (s *Session) sendState() bool {
	w := s.loop.World()
	frame := StateFrame{
		Type:     FrameState,
		Tick:     w.Tick,
		RunState: s.loop.State().String(),
		Score:    w.Score,
		Best:     s.keeper.Best(),
		Speed:    w.Speed,
		Player: PlayerFrame{
			X:        w.Player.X,
			Y:        w.Player.Y,
			Airborne: w.Player.Airborne,
		},
		Obstacles: make([]ObstacleFrame, 0, len(w.Obstacles)),
	}
	for _, ob := range w.Obstacles {
		frame.Obstacles = append(frame.Obstacles, ObstacleFrame{
			X: ob.X, Y: ob.Y, Width: ob.Width, Height: ob.Height,
		})
	}
	return s.send(frame)
}

// send encodes and writes one frame. A write failure stops the session.
func (s *Session) send(frame any) bool {
	b, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("failed to encode frame", "error", err)
		return true
	}
	if err := s.conn.Send(b); err != nil {
		s.logger.Info("client write failed, closing session", "error", err)
		s.Stop()
		return false
	}
	return true
}
