package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geometry-runner/internal/config"
	"github.com/geometry-runner/internal/domain"
)

const (
	topPlayersKey = "leaderboard:top"
	realtimeKey   = "leaderboard:realtime"
)

// Cache provides Redis-backed read acceleration for the leaderboard and
// the per-device key-value store behind the advisory local best.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache creates a new Redis cache
func NewCache(cfg *config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client
func (c *Cache) Client() *redis.Client {
	return c.client
}

// DeviceStore is a narrow get/set view over one device's keys. It backs
// the local best score; absence of a key is not an error.
type DeviceStore struct {
	cache    *Cache
	deviceID string
}

// Device returns the key-value store scoped to one device.
func (c *Cache) Device(deviceID string) *DeviceStore {
	return &DeviceStore{cache: c, deviceID: deviceID}
}

func (s *DeviceStore) key(key string) string {
	return fmt.Sprintf("device:%s:%s", s.deviceID, key)
}

// Get reads a device-scoped value. The second return is false when the
// key is absent.
func (s *DeviceStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.cache.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting device key: %w", err)
	}
	return val, true, nil
}

// Set writes a device-scoped value.
func (s *DeviceStore) Set(ctx context.Context, key, value string) error {
	if err := s.cache.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("setting device key: %w", err)
	}
	return nil
}

// CacheTopPlayers stores the denormalized top-N projection.
func (c *Cache) CacheTopPlayers(ctx context.Context, top []domain.TopPlayer, ttl time.Duration) error {
	data, err := json.Marshal(top)
	if err != nil {
		return fmt.Errorf("marshaling top players: %w", err)
	}
	if err := c.client.Set(ctx, topPlayersKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("caching top players: %w", err)
	}
	return nil
}

// CachedTopPlayers reads the cached top-N projection. The second return
// is false on a cache miss.
func (c *Cache) CachedTopPlayers(ctx context.Context) ([]domain.TopPlayer, bool, error) {
	data, err := c.client.Get(ctx, topPlayersKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting cached top players: %w", err)
	}
	var top []domain.TopPlayer
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, false, fmt.Errorf("unmarshaling top players: %w", err)
	}
	return top, true, nil
}

// InvalidateTopPlayers drops the cached projection so the next read
// recomputes from the score log.
func (c *Cache) InvalidateTopPlayers(ctx context.Context) error {
	if err := c.client.Del(ctx, topPlayersKey).Err(); err != nil {
		return fmt.Errorf("invalidating top players: %w", err)
	}
	return nil
}

// SetTotalScore updates one player's entry in the realtime sorted set.
func (c *Cache) SetTotalScore(ctx context.Context, playerID string, total int) error {
	err := c.client.ZAdd(ctx, realtimeKey, redis.Z{
		Score:  float64(total),
		Member: playerID,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting total score: %w", err)
	}
	return nil
}

// BatchSetTotalScores rebuilds the realtime sorted set using pipelining.
func (c *Cache) BatchSetTotalScores(ctx context.Context, totals map[string]int) error {
	pipe := c.client.Pipeline()
	for playerID, total := range totals {
		pipe.ZAdd(ctx, realtimeKey, redis.Z{
			Score:  float64(total),
			Member: playerID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch setting total scores: %w", err)
	}
	return nil
}

// RealtimeRank returns a player's 1-indexed position and total in the
// realtime sorted set. Best-effort: the fold over the durable log is
// authoritative.
func (c *Cache) RealtimeRank(ctx context.Context, playerID string) (int64, int, error) {
	pipe := c.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, realtimeKey, playerID)
	scoreCmd := pipe.ZScore(ctx, realtimeKey, playerID)
	if _, err := pipe.Exec(ctx); err != nil {
		if err == redis.Nil {
			return 0, 0, domain.ErrPlayerNotRanked
		}
		return 0, 0, fmt.Errorf("getting realtime rank: %w", err)
	}
	rank, err := rankCmd.Result()
	if err != nil {
		if err == redis.Nil {
			return 0, 0, domain.ErrPlayerNotRanked
		}
		return 0, 0, fmt.Errorf("getting rank result: %w", err)
	}
	total, err := scoreCmd.Result()
	if err != nil {
		return 0, 0, fmt.Errorf("getting score result: %w", err)
	}
	return rank + 1, int(total), nil
}

// SetPlayerInfo caches player identity and, once the player has
// submitted runs, their aggregate stats. An identity-only write leaves
// previously cached stats intact.
func (c *Cache) SetPlayerInfo(ctx context.Context, info domain.PlayerInfo) error {
	key := fmt.Sprintf("player:%s:info", info.ID)
	fields := []interface{}{"name", info.Name}
	if info.GamesPlayed > 0 {
		fields = append(fields,
			"total_stars", info.TotalStars,
			"games_played", info.GamesPlayed,
			"best_score", info.BestScore,
		)
	}
	if err := c.client.HSet(ctx, key, fields...).Err(); err != nil {
		return fmt.Errorf("setting player info: %w", err)
	}
	return nil
}

// GetPlayerInfo retrieves cached player identity and stats.
func (c *Cache) GetPlayerInfo(ctx context.Context, playerID string) (*domain.PlayerInfo, error) {
	key := fmt.Sprintf("player:%s:info", playerID)
	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("getting player info: %w", err)
	}
	if len(result) == 0 {
		return nil, domain.ErrPlayerNotFound
	}
	info := &domain.PlayerInfo{
		ID:   playerID,
		Name: result["name"],
	}
	info.TotalStars, _ = strconv.Atoi(result["total_stars"])
	info.GamesPlayed, _ = strconv.Atoi(result["games_played"])
	info.BestScore, _ = strconv.Atoi(result["best_score"])
	return info, nil
}
