package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/geometry-runner/internal/domain"
	"github.com/geometry-runner/internal/game"
	"github.com/geometry-runner/internal/testutil"
)

type fakeConn struct {
	sendCh chan []byte
}

func (f *fakeConn) Send(b []byte) error {
	cp := append([]byte(nil), b...)
	select {
	case f.sendCh <- cp:
	default:
		// Drop when the test is not draining; the actor must not block.
	}
	return nil
}

func (f *fakeConn) Close() error { return nil }

type fakeSubmitter struct {
	mu   sync.Mutex
	subs []domain.ScoreSubmission
}

func (f *fakeSubmitter) SubmitScore(ctx context.Context, sub domain.ScoreSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sub)
	return nil
}

func (f *fakeSubmitter) submissions() []domain.ScoreSubmission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ScoreSubmission(nil), f.subs...)
}

type memKV struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemKV() *memKV { return &memKV{m: make(map[string]string)} }

func (kv *memKV) Get(ctx context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.m[key]
	return v, ok, nil
}

func (kv *memKV) Set(ctx context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[key] = value
	return nil
}

// fastConfig runs the simulation far above display rate so a full run
// fits in test time. The semantics are per-tick, so only wall time
// changes.
func fastConfig() Config {
	return Config{TickHz: 1000, BroadcastHz: 100, SubmitTimeout: time.Second}
}

func frameType(b []byte) string {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return ""
	}
	return env.Type
}

func TestSessionBroadcastsStateWhilePlaying(t *testing.T) {
	fc := &fakeConn{sendCh: make(chan []byte, 256)}
	keeper := game.NewScoreKeeper(newMemKV())
	s := New("s1", "p1", fc, keeper, &fakeSubmitter{}, fastConfig(), testutil.Logger())
	go s.Run()
	defer s.Stop()

	s.Inbox <- Start{}

	var playing []StateFrame
	timeout := time.After(2 * time.Second)
	for len(playing) < 3 {
		select {
		case b := <-fc.sendCh:
			if frameType(b) != FrameState {
				continue
			}
			var st StateFrame
			if err := json.Unmarshal(b, &st); err != nil {
				t.Fatalf("decode state frame: %v", err)
			}
			if st.RunState == "playing" && st.Tick > 0 {
				playing = append(playing, st)
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state frames, got %d", len(playing))
		}
	}

	for i := 1; i < len(playing); i++ {
		if playing[i].Tick <= playing[i-1].Tick {
			t.Fatalf("ticks not advancing: %d then %d", playing[i-1].Tick, playing[i].Tick)
		}
	}
	last := playing[len(playing)-1]
	if last.Player.X != game.PlayerX {
		t.Fatalf("player x = %v, want fixed %v", last.Player.X, game.PlayerX)
	}
	if last.Player.Y > game.GroundY {
		t.Fatalf("player y = %v below ground %v", last.Player.Y, game.GroundY)
	}
}

func TestSessionRunEndsWithGameOverAndSubmission(t *testing.T) {
	fc := &fakeConn{sendCh: make(chan []byte, 256)}
	kv := newMemKV()
	keeper := game.NewScoreKeeper(kv)
	sub := &fakeSubmitter{}
	s := New("s1", "p1", fc, keeper, sub, fastConfig(), testutil.Logger())
	go s.Run()
	defer s.Stop()

	// Never jump: the first obstacle ends the run.
	s.Inbox <- Start{}

	var over GameOverFrame
	timeout := time.After(5 * time.Second)
deadline:
	for {
		select {
		case b := <-fc.sendCh:
			if frameType(b) != FrameGameOver {
				continue
			}
			if err := json.Unmarshal(b, &over); err != nil {
				t.Fatalf("decode game over frame: %v", err)
			}
			break deadline
		case <-timeout:
			t.Fatalf("timed out waiting for game over")
		}
	}

	if over.Summary.Score <= 0 {
		t.Fatalf("expected a positive score, got %d", over.Summary.Score)
	}
	if over.Summary.Stars != game.Stars(over.Summary.Score) {
		t.Fatalf("stars = %d, want %d", over.Summary.Stars, game.Stars(over.Summary.Score))
	}
	if !over.Summary.NewBest || over.Summary.Best != over.Summary.Score {
		t.Fatalf("first run should set the local best: %+v", over.Summary)
	}
	if _, ok, _ := kv.Get(context.Background(), game.LocalBestKey); !ok {
		t.Fatalf("local best not persisted")
	}

	// The durable submission runs async; wait for it.
	waitUntil(t, time.Second, func() bool { return len(sub.submissions()) == 1 })
	got := sub.submissions()[0]
	if got.PlayerID != "p1" || got.Score != over.Summary.Score {
		t.Fatalf("submission %+v does not match summary %+v", got, over.Summary)
	}

	// GameOver is re-enterable: a new start produces a fresh run.
	s.Inbox <- Start{}
	timeout = time.After(2 * time.Second)
	for {
		select {
		case b := <-fc.sendCh:
			if frameType(b) != FrameState {
				continue
			}
			var st StateFrame
			if err := json.Unmarshal(b, &st); err != nil {
				t.Fatalf("decode state frame: %v", err)
			}
			if st.RunState == "playing" {
				if st.Best != over.Summary.Best {
					t.Fatalf("best = %d, want carried over %d", st.Best, over.Summary.Best)
				}
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for restarted run")
		}
	}
}

func TestSessionPauseStopsTicking(t *testing.T) {
	fc := &fakeConn{sendCh: make(chan []byte, 256)}
	keeper := game.NewScoreKeeper(newMemKV())
	s := New("s1", "p1", fc, keeper, &fakeSubmitter{}, fastConfig(), testutil.Logger())
	go s.Run()
	defer s.Stop()

	s.Inbox <- Start{}
	s.Inbox <- Pause{}

	// Drain until the menu frame, then note the tick.
	var pausedTick int
	timeout := time.After(2 * time.Second)
	for {
		select {
		case b := <-fc.sendCh:
			if frameType(b) != FrameState {
				continue
			}
			var st StateFrame
			if err := json.Unmarshal(b, &st); err != nil {
				t.Fatalf("decode state frame: %v", err)
			}
			if st.RunState == "menu" {
				pausedTick = st.Tick
			}
		case <-time.After(100 * time.Millisecond):
			if s.loop.World().Tick != pausedTick {
				t.Fatalf("loop advanced while paused: %d != %d", s.loop.World().Tick, pausedTick)
			}
			return
		case <-timeout:
			t.Fatalf("timed out waiting for menu frame")
		}
	}
}

func TestManagerEnforcesSessionLimit(t *testing.T) {
	m := NewManager(fastConfig(), 1, &fakeSubmitter{}, testutil.Logger())

	keeper := game.NewScoreKeeper(newMemKV())
	s1, err := m.StartSession("p1", &fakeConn{sendCh: make(chan []byte, 16)}, keeper)
	if err != nil {
		t.Fatalf("first session: %v", err)
	}
	if m.Active() != 1 {
		t.Fatalf("active = %d, want 1", m.Active())
	}

	if _, err := m.StartSession("p2", &fakeConn{sendCh: make(chan []byte, 16)}, keeper); err != ErrSessionLimit {
		t.Fatalf("expected session limit error, got %v", err)
	}

	s1.Stop()
	waitUntil(t, time.Second, func() bool { return m.Active() == 0 })

	if _, err := m.StartSession("p2", &fakeConn{sendCh: make(chan []byte, 16)}, keeper); err != nil {
		t.Fatalf("slot should be free again: %v", err)
	}
	m.Shutdown()
	waitUntil(t, time.Second, func() bool { return m.Active() == 0 })
}

// slowSubmitter records each submission only after a delay, standing in
// for a store write still in flight when the server shuts down.
type slowSubmitter struct {
	fakeSubmitter
	delay time.Duration
}

func (f *slowSubmitter) SubmitScore(ctx context.Context, sub domain.ScoreSubmission) error {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return f.fakeSubmitter.SubmitScore(ctx, sub)
}

func TestShutdownWaitsForInFlightSubmission(t *testing.T) {
	sub := &slowSubmitter{delay: 100 * time.Millisecond}
	m := NewManager(fastConfig(), 1, sub, testutil.Logger())

	fc := &fakeConn{sendCh: make(chan []byte, 256)}
	s, err := m.StartSession("p1", fc, game.NewScoreKeeper(newMemKV()))
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	// Never jump: the first obstacle ends the run.
	s.Inbox <- Start{}

	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case b := <-fc.sendCh:
			done = frameType(b) == FrameGameOver
		case <-timeout:
			t.Fatalf("timed out waiting for game over")
		}
	}

	// Shut down while the submission is still sleeping. Shutdown must
	// not return before the write lands.
	m.Shutdown()
	if got := len(sub.submissions()); got != 1 {
		t.Fatalf("submissions after shutdown = %d, want 1", got)
	}
	if m.Active() != 0 {
		t.Fatalf("active = %d, want 0", m.Active())
	}
}

func waitUntil(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}
