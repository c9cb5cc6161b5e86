package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/geometry-runner/internal/domain"
	"github.com/geometry-runner/internal/testutil"
)

func recvFrame(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case b := <-c.send:
		var msg Message
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for frame")
		return Message{}
	}
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(testutil.Logger())
	go hub.Run()
	defer hub.Stop()

	c1 := NewClient(hub, nil, testutil.Logger())
	c2 := NewClient(hub, nil, testutil.Logger())
	hub.Register(c1)
	hub.Register(c2)

	top := []domain.TopPlayer{{PlayerName: "Ana", TotalScore: 400, RankingPosition: 1}}
	hub.BroadcastLeaderboard(top)

	for _, c := range []*Client{c1, c2} {
		msg := recvFrame(t, c)
		if msg.Type != MessageTypeLeaderboardUpdate {
			t.Fatalf("type = %q, want %q", msg.Type, MessageTypeLeaderboardUpdate)
		}
	}
}

func TestHubReplaysLastUpdateToLateJoiners(t *testing.T) {
	hub := NewHub(testutil.Logger())
	go hub.Run()
	defer hub.Stop()

	first := NewClient(hub, nil, testutil.Logger())
	hub.Register(first)
	hub.BroadcastLeaderboard([]domain.TopPlayer{{PlayerName: "Ana", TotalScore: 100, RankingPosition: 1}})
	recvFrame(t, first)

	late := NewClient(hub, nil, testutil.Logger())
	hub.Register(late)

	msg := recvFrame(t, late)
	if msg.Type != MessageTypeLeaderboardUpdate {
		t.Fatalf("late joiner got %q, want %q", msg.Type, MessageTypeLeaderboardUpdate)
	}

	b, err := json.Marshal(msg.Data)
	if err != nil {
		t.Fatalf("remarshal data: %v", err)
	}
	var update LeaderboardUpdate
	if err := json.Unmarshal(b, &update); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if len(update.TopPlayers) != 1 || update.TopPlayers[0].PlayerName != "Ana" {
		t.Fatalf("unexpected standings: %+v", update.TopPlayers)
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub(testutil.Logger())
	go hub.Run()
	defer hub.Stop()

	c := NewClient(hub, nil, testutil.Logger())
	hub.Register(c)
	hub.Unregister(c)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected closed channel, got frame")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}

	if n := hub.GetTotalConnections(); n != 0 {
		t.Fatalf("connections = %d, want 0", n)
	}
}
