package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/geometry-runner/internal/domain"
	"github.com/geometry-runner/internal/game"
	"github.com/geometry-runner/internal/session"
	"github.com/geometry-runner/internal/testutil"
)

type nopConn struct{}

func (nopConn) Send([]byte) error { return nil }
func (nopConn) Close() error      { return nil }

type nopKV struct{}

func (nopKV) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (nopKV) Set(context.Context, string, string) error         { return nil }

type nopSubmitter struct{}

func (nopSubmitter) SubmitScore(context.Context, domain.ScoreSubmission) error { return nil }

func TestPlayForwardNeverBlocksOnFullInbox(t *testing.T) {
	p := newPlayConn(nil, testutil.Logger())
	cfg := session.Config{TickHz: 60, BroadcastHz: 20, SubmitTimeout: time.Second}
	sess := session.New("s1", "p1", nopConn{}, game.NewScoreKeeper(nopKV{}), nopSubmitter{}, cfg, testutil.Logger())

	// The session never runs, so nothing drains the inbox.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10*cap(sess.Inbox); i++ {
			p.forward(sess, PlayCommand{Type: PlayCommandJump})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("forward blocked on a full inbox")
	}
	if len(sess.Inbox) != cap(sess.Inbox) {
		t.Fatalf("inbox holds %d of %d commands", len(sess.Inbox), cap(sess.Inbox))
	}
}
