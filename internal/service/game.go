package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/geometry-runner/internal/config"
	"github.com/geometry-runner/internal/domain"
	"github.com/geometry-runner/internal/metrics"
	"github.com/geometry-runner/internal/ranking"
)

// Store is the durable surface: the player directory and the
// append-only score log.
type Store interface {
	CreatePlayer(ctx context.Context, name, email, avatarURL string) (*domain.Player, error)
	GetPlayerByName(ctx context.Context, name string) (*domain.Player, error)
	GetPlayer(ctx context.Context, playerID string) (*domain.Player, error)
	InsertScore(ctx context.Context, sub domain.ScoreSubmission) error
	ListScoreEvents(ctx context.Context) ([]domain.ScoreEvent, error)
	ListPlayerScores(ctx context.Context, playerID string, limit int) ([]domain.GameScore, error)
	CountScores(ctx context.Context) (int64, error)
}

// Cache is the best-effort read acceleration surface. Every call may
// fail without affecting correctness.
type Cache interface {
	CachedTopPlayers(ctx context.Context) ([]domain.TopPlayer, bool, error)
	CacheTopPlayers(ctx context.Context, top []domain.TopPlayer, ttl time.Duration) error
	InvalidateTopPlayers(ctx context.Context) error
	SetTotalScore(ctx context.Context, playerID string, total int) error
	BatchSetTotalScores(ctx context.Context, totals map[string]int) error
	RealtimeRank(ctx context.Context, playerID string) (int64, int, error)
	SetPlayerInfo(ctx context.Context, info domain.PlayerInfo) error
	GetPlayerInfo(ctx context.Context, playerID string) (*domain.PlayerInfo, error)
}

// Broadcaster pushes leaderboard updates to connected spectators.
type Broadcaster interface {
	BroadcastLeaderboard(top []domain.TopPlayer)
}

// GameService provides player resolution, run submission and the
// leaderboard read side.
type GameService struct {
	store  Store
	cache  Cache
	config *config.LeaderboardConfig
	logger *slog.Logger
	hub    Broadcaster
}

// NewGameService creates a new game service
func NewGameService(store Store, cache Cache, cfg *config.LeaderboardConfig, logger *slog.Logger) *GameService {
	return &GameService{
		store:  store,
		cache:  cache,
		config: cfg,
		logger: logger,
	}
}

// SetHub sets the broadcaster used after successful submissions.
func (s *GameService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// ResolvePlayer finds a player by exact display name, creating the row
// on first login. Email is recorded only at creation and never updated
// on repeat logins. A lost creation race resolves to the existing row.
func (s *GameService) ResolvePlayer(ctx context.Context, name, email string) (*domain.Player, error) {
	if name == "" {
		return nil, domain.ErrInvalidRequest
	}

	player, err := s.store.GetPlayerByName(ctx, name)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, domain.ErrPlayerNotFound) {
		return nil, fmt.Errorf("looking up player: %w", err)
	}

	player, err = s.store.CreatePlayer(ctx, name, email, avatarURL(name))
	if err != nil {
		return nil, fmt.Errorf("creating player: %w", err)
	}

	if err := s.cache.SetPlayerInfo(ctx, domain.PlayerInfo{ID: player.ID, Name: player.Name}); err != nil {
		s.logger.Warn("failed to cache player info", "player_id", player.ID, "error", err)
	}

	return player, nil
}

// avatarURL derives a stable avatar reference from the display name.
func avatarURL(name string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(name)
}

// SubmitScore appends one completed run to the score log and refreshes
// the derived rankings. The write path and the refresh are separate:
// refresh failures are logged, never returned, because the row is
// already durable and any later read recomputes the same fold.
func (s *GameService) SubmitScore(ctx context.Context, sub domain.ScoreSubmission) error {
	if sub.PlayerID == "" {
		return domain.ErrInvalidRequest
	}
	if sub.Score < 0 || sub.Stars < 0 || sub.Stars > 3 || sub.LevelCompleted < 0 || sub.GameDuration < 0 {
		return domain.ErrInvalidScore
	}

	if err := s.store.InsertScore(ctx, sub); err != nil {
		metrics.RecordSubmitFailure()
		return fmt.Errorf("appending score: %w", err)
	}
	metrics.RecordRunSubmitted()

	s.refreshRankings(ctx, sub.PlayerID)
	return nil
}

// SubmitRun resolves the named player and submits their run. Used for
// externally produced run events.
func (s *GameService) SubmitRun(ctx context.Context, ev domain.RunEvent) (*domain.Player, error) {
	player, err := s.ResolvePlayer(ctx, ev.PlayerName, ev.Email)
	if err != nil {
		return nil, err
	}
	err = s.SubmitScore(ctx, domain.ScoreSubmission{
		PlayerID:       player.ID,
		Score:          ev.Score,
		Stars:          ev.Stars,
		LevelCompleted: ev.LevelCompleted,
		GameDuration:   ev.GameDuration,
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

// refreshRankings recomputes the fold once and fans the result out to
// the cache, the realtime sorted set and the spectator hub.
func (s *GameService) refreshRankings(ctx context.Context, playerID string) {
	events, err := s.store.ListScoreEvents(ctx)
	if err != nil {
		s.logger.Warn("failed to read score log for ranking refresh", "error", err)
		return
	}
	rows := ranking.Aggregate(events)
	metrics.RecordRankingRebuild()

	top := topFromRows(rows, s.config.DefaultLimit)
	if err := s.cache.CacheTopPlayers(ctx, top, s.config.CacheTTL); err != nil {
		s.logger.Warn("failed to cache top players", "error", err)
		// The cached projection predates this submission; drop it
		// rather than serve it for the rest of its TTL.
		if err := s.cache.InvalidateTopPlayers(ctx); err != nil {
			s.logger.Warn("failed to invalidate top players", "error", err)
		}
	}
	for _, r := range rows {
		if r.PlayerID == playerID {
			s.cacheRealtimeRow(ctx, r)
			break
		}
	}
	if s.hub != nil {
		s.hub.BroadcastLeaderboard(top)
	}
}

// cacheRealtimeRow pushes one player's aggregate into the realtime
// sorted set and the player info hash, the pair RankingFor reads.
func (s *GameService) cacheRealtimeRow(ctx context.Context, r ranking.Row) {
	if err := s.cache.SetTotalScore(ctx, r.PlayerID, r.TotalScore); err != nil {
		s.logger.Warn("failed to update realtime total", "player_id", r.PlayerID, "error", err)
		return
	}
	info := domain.PlayerInfo{
		ID:          r.PlayerID,
		Name:        r.PlayerName,
		TotalStars:  r.TotalStars,
		GamesPlayed: r.GamesPlayed,
		BestScore:   r.BestScore,
	}
	if err := s.cache.SetPlayerInfo(ctx, info); err != nil {
		s.logger.Warn("failed to cache player stats", "player_id", r.PlayerID, "error", err)
	}
}

// RefreshRankings rebuilds every derived ranking view from the score
// log. Used by the periodic sync worker.
func (s *GameService) RefreshRankings(ctx context.Context) error {
	events, err := s.store.ListScoreEvents(ctx)
	if err != nil {
		return fmt.Errorf("reading score log: %w", err)
	}
	rows := ranking.Aggregate(events)
	metrics.RecordRankingRebuild()

	top := topFromRows(rows, s.config.DefaultLimit)
	if err := s.cache.CacheTopPlayers(ctx, top, s.config.CacheTTL); err != nil {
		return fmt.Errorf("caching top players: %w", err)
	}
	totals := make(map[string]int, len(rows))
	for _, r := range rows {
		totals[r.PlayerID] = r.TotalScore
	}
	if len(totals) > 0 {
		if err := s.cache.BatchSetTotalScores(ctx, totals); err != nil {
			return fmt.Errorf("rebuilding realtime totals: %w", err)
		}
	}
	for _, r := range rows {
		info := domain.PlayerInfo{
			ID:          r.PlayerID,
			Name:        r.PlayerName,
			TotalStars:  r.TotalStars,
			GamesPlayed: r.GamesPlayed,
			BestScore:   r.BestScore,
		}
		if err := s.cache.SetPlayerInfo(ctx, info); err != nil {
			return fmt.Errorf("caching player stats: %w", err)
		}
	}
	return nil
}

// TopPlayers returns the top n leaderboard entries. Cached projections
// serve reads within the default limit; anything else folds the log.
func (s *GameService) TopPlayers(ctx context.Context, n int) ([]domain.TopPlayer, error) {
	if n <= 0 {
		n = s.config.DefaultLimit
	}
	if n > s.config.MaxLimit {
		n = s.config.MaxLimit
	}

	if n <= s.config.DefaultLimit {
		top, ok, err := s.cache.CachedTopPlayers(ctx)
		if err != nil {
			s.logger.Warn("leaderboard cache read failed", "error", err)
		} else if ok {
			if n < len(top) {
				top = top[:n]
			}
			return top, nil
		}
	}

	events, err := s.store.ListScoreEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading score log: %w", err)
	}
	rows := ranking.Aggregate(events)
	metrics.RecordRankingRebuild()

	if err := s.cache.CacheTopPlayers(ctx, topFromRows(rows, s.config.DefaultLimit), s.config.CacheTTL); err != nil {
		s.logger.Warn("failed to cache top players", "error", err)
	}
	return topFromRows(rows, n), nil
}

// RankingFor returns one player's aggregate and rank among all players.
// Returns domain.ErrPlayerNotRanked when the player has submitted
// nothing, and domain.ErrPlayerNotFound for an unknown id.
func (s *GameService) RankingFor(ctx context.Context, playerID string) (*domain.PlayerRanking, error) {
	if playerID == "" {
		return nil, domain.ErrInvalidRequest
	}
	if _, err := s.store.GetPlayer(ctx, playerID); err != nil {
		if errors.Is(err, domain.ErrPlayerNotFound) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("looking up player: %w", err)
	}

	// Fast path: the realtime sorted set answers rank and total, the
	// player info hash carries the rest. Any gap falls back to the
	// authoritative fold over the log.
	if r, ok := s.realtimeRanking(ctx, playerID); ok {
		return r, nil
	}

	events, err := s.store.ListScoreEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading score log: %w", err)
	}
	r, ok := ranking.For(events, playerID)
	if !ok {
		return nil, domain.ErrPlayerNotRanked
	}
	return &r, nil
}

func (s *GameService) realtimeRanking(ctx context.Context, playerID string) (*domain.PlayerRanking, bool) {
	rank, total, err := s.cache.RealtimeRank(ctx, playerID)
	if err != nil {
		if !errors.Is(err, domain.ErrPlayerNotRanked) {
			s.logger.Warn("realtime rank read failed", "player_id", playerID, "error", err)
		}
		return nil, false
	}
	info, err := s.cache.GetPlayerInfo(ctx, playerID)
	if err != nil || info.GamesPlayed == 0 {
		return nil, false
	}
	return &domain.PlayerRanking{
		PlayerID:        playerID,
		TotalScore:      total,
		TotalStars:      info.TotalStars,
		GamesPlayed:     info.GamesPlayed,
		BestScore:       info.BestScore,
		RankingPosition: int(rank),
	}, true
}

// Player returns one player by id.
func (s *GameService) Player(ctx context.Context, playerID string) (*domain.Player, error) {
	if playerID == "" {
		return nil, domain.ErrInvalidRequest
	}
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, domain.ErrPlayerNotFound) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("looking up player: %w", err)
	}
	return player, nil
}

// CountScores reports the size of the durable score log. Used as the
// readiness probe: a working count means the store serves reads.
func (s *GameService) CountScores(ctx context.Context) (int64, error) {
	count, err := s.store.CountScores(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting scores: %w", err)
	}
	return count, nil
}

// PlayerScores returns a player's most recent run history.
func (s *GameService) PlayerScores(ctx context.Context, playerID string, limit int) ([]domain.GameScore, error) {
	if playerID == "" {
		return nil, domain.ErrInvalidRequest
	}
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	scores, err := s.store.ListPlayerScores(ctx, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing player scores: %w", err)
	}
	return scores, nil
}

func topFromRows(rows []ranking.Row, n int) []domain.TopPlayer {
	if n < len(rows) {
		rows = rows[:n]
	}
	top := make([]domain.TopPlayer, len(rows))
	for i, r := range rows {
		top[i] = domain.TopPlayer{
			PlayerName:      r.PlayerName,
			TotalScore:      r.TotalScore,
			TotalStars:      r.TotalStars,
			GamesPlayed:     r.GamesPlayed,
			BestScore:       r.BestScore,
			RankingPosition: r.Position,
		}
	}
	return top
}
