// Package testutil provides in-memory stand-ins for the durable store
// and the cache, used by service and handler tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geometry-runner/internal/domain"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FakeStore keeps the player directory and the score log in memory.
// The score log is append-only, mirroring the durable contract.
type FakeStore struct {
	mu         sync.Mutex
	players    map[string]*domain.Player // by id
	byName     map[string]string         // name -> id
	scores     []domain.GameScore
	clock      time.Time
	insertFail error
	listFail   error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		players: make(map[string]*domain.Player),
		byName:  make(map[string]string),
		clock:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// FailInserts makes every subsequent InsertScore return err. Pass nil
// to restore normal behavior.
func (f *FakeStore) FailInserts(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertFail = err
}

// FailListEvents makes every subsequent ListScoreEvents return err.
// Pass nil to restore normal behavior.
func (f *FakeStore) FailListEvents(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFail = err
}

func (f *FakeStore) PlayerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players)
}

// tick advances the fake clock so every row gets a distinct timestamp.
func (f *FakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *FakeStore) CreatePlayer(ctx context.Context, name, email, avatarURL string) (*domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.byName[name]; ok {
		// Lost creation race resolves to the existing row.
		p := *f.players[id]
		return &p, nil
	}
	now := f.tick()
	p := &domain.Player{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		AvatarURL: avatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.players[p.ID] = p
	f.byName[name] = p.ID
	out := *p
	return &out, nil
}

func (f *FakeStore) GetPlayerByName(ctx context.Context, name string) (*domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.byName[name]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	p := *f.players[id]
	return &p, nil
}

func (f *FakeStore) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	out := *p
	return &out, nil
}

func (f *FakeStore) InsertScore(ctx context.Context, sub domain.ScoreSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertFail != nil {
		return f.insertFail
	}
	f.scores = append(f.scores, domain.GameScore{
		ID:             uuid.New().String(),
		PlayerID:       sub.PlayerID,
		Score:          sub.Score,
		Stars:          sub.Stars,
		LevelCompleted: sub.LevelCompleted,
		GameDuration:   sub.GameDuration,
		CreatedAt:      f.tick(),
	})
	return nil
}

func (f *FakeStore) ListScoreEvents(ctx context.Context) ([]domain.ScoreEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listFail != nil {
		return nil, f.listFail
	}
	events := make([]domain.ScoreEvent, 0, len(f.scores))
	for _, s := range f.scores {
		events = append(events, domain.ScoreEvent{
			PlayerID:   s.PlayerID,
			PlayerName: f.players[s.PlayerID].Name,
			Score:      s.Score,
			Stars:      s.Stars,
			CreatedAt:  s.CreatedAt,
		})
	}
	return events, nil
}

func (f *FakeStore) ListPlayerScores(ctx context.Context, playerID string, limit int) ([]domain.GameScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.GameScore
	for i := len(f.scores) - 1; i >= 0 && len(out) < limit; i-- {
		if f.scores[i].PlayerID == playerID {
			out = append(out, f.scores[i])
		}
	}
	return out, nil
}

func (f *FakeStore) CountScores(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listFail != nil {
		return 0, f.listFail
	}
	return int64(len(f.scores)), nil
}

// FakeCache records what the service writes and serves it back.
type FakeCache struct {
	mu           sync.Mutex
	top          []domain.TopPlayer
	hasTop       bool
	totals       map[string]int
	info         map[string]domain.PlayerInfo
	topWriteFail error
}

func NewFakeCache() *FakeCache {
	return &FakeCache{
		totals: make(map[string]int),
		info:   make(map[string]domain.PlayerInfo),
	}
}

// FailTopWrites makes every subsequent CacheTopPlayers return err.
// Pass nil to restore normal behavior.
func (f *FakeCache) FailTopWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topWriteFail = err
}

// Top returns the last cached leaderboard projection.
func (f *FakeCache) Top() ([]domain.TopPlayer, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.top, f.hasTop
}

func (f *FakeCache) CachedTopPlayers(ctx context.Context) ([]domain.TopPlayer, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.top, f.hasTop, nil
}

func (f *FakeCache) CacheTopPlayers(ctx context.Context, top []domain.TopPlayer, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.topWriteFail != nil {
		return f.topWriteFail
	}
	f.top = top
	f.hasTop = true
	return nil
}

func (f *FakeCache) InvalidateTopPlayers(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.top = nil
	f.hasTop = false
	return nil
}

func (f *FakeCache) SetTotalScore(ctx context.Context, playerID string, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totals[playerID] = total
	return nil
}

func (f *FakeCache) BatchSetTotalScores(ctx context.Context, totals map[string]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, total := range totals {
		f.totals[id] = total
	}
	return nil
}

// RealtimeRank ranks by total descending; ties order by descending
// player id, matching a reverse range over a sorted set.
func (f *FakeCache) RealtimeRank(ctx context.Context, playerID string) (int64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total, ok := f.totals[playerID]
	if !ok {
		return 0, 0, domain.ErrPlayerNotRanked
	}
	rank := int64(1)
	for id, t := range f.totals {
		if t > total || (t == total && id > playerID) {
			rank++
		}
	}
	return rank, total, nil
}

func (f *FakeCache) SetPlayerInfo(ctx context.Context, info domain.PlayerInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := f.info[info.ID]
	existing.ID = info.ID
	existing.Name = info.Name
	if info.GamesPlayed > 0 {
		existing.TotalStars = info.TotalStars
		existing.GamesPlayed = info.GamesPlayed
		existing.BestScore = info.BestScore
	}
	f.info[info.ID] = existing
	return nil
}

func (f *FakeCache) GetPlayerInfo(ctx context.Context, playerID string) (*domain.PlayerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.info[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	out := info
	return &out, nil
}
