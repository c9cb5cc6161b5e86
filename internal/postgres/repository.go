package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geometry-runner/internal/config"
	"github.com/geometry-runner/internal/domain"
)

// Repository provides PostgreSQL-based data access to the durable
// player directory and the append-only score log.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			email VARCHAR(255),
			avatar_url TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS game_scores (
			id VARCHAR(64) PRIMARY KEY,
			player_id VARCHAR(64) NOT NULL REFERENCES players(id),
			score INT NOT NULL,
			stars INT NOT NULL CHECK (stars BETWEEN 0 AND 3),
			level_completed INT NOT NULL,
			game_duration INT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_scores_player ON game_scores(player_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_game_scores_created ON game_scores(created_at)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// CreatePlayer inserts a new player row. The unique name constraint is
// the arbiter under concurrent first-time creation: when another session
// wins the race the existing row is fetched and returned instead.
func (r *Repository) CreatePlayer(ctx context.Context, name, email, avatarURL string) (*domain.Player, error) {
	query := `
		INSERT INTO players (id, name, email, avatar_url, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $5)
		ON CONFLICT (name) DO NOTHING
	`
	id := uuid.New().String()
	now := time.Now()
	tag, err := r.pool.Exec(ctx, query, id, name, email, avatarURL, now)
	if err != nil {
		return nil, fmt.Errorf("creating player: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost the creation race; the row exists now.
		return r.GetPlayerByName(ctx, name)
	}
	return &domain.Player{
		ID:        id,
		Name:      name,
		Email:     email,
		AvatarURL: avatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetPlayerByName retrieves a player by exact display name.
func (r *Repository) GetPlayerByName(ctx context.Context, name string) (*domain.Player, error) {
	query := `
		SELECT id, name, COALESCE(email, ''), COALESCE(avatar_url, ''), created_at, updated_at
		FROM players
		WHERE name = $1
	`
	return r.scanPlayer(r.pool.QueryRow(ctx, query, name))
}

// GetPlayer retrieves a player by id.
func (r *Repository) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	query := `
		SELECT id, name, COALESCE(email, ''), COALESCE(avatar_url, ''), created_at, updated_at
		FROM players
		WHERE id = $1
	`
	return r.scanPlayer(r.pool.QueryRow(ctx, query, playerID))
}

func (r *Repository) scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &p, nil
}

// InsertScore appends one immutable row to the score log.
func (r *Repository) InsertScore(ctx context.Context, sub domain.ScoreSubmission) error {
	query := `
		INSERT INTO game_scores (id, player_id, score, stars, level_completed, game_duration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		uuid.New().String(),
		sub.PlayerID,
		sub.Score,
		sub.Stars,
		sub.LevelCompleted,
		sub.GameDuration,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("inserting score: %w", err)
	}
	return nil
}

// ListScoreEvents reads the whole score log joined with player names,
// oldest first. The ranking aggregator folds over this.
func (r *Repository) ListScoreEvents(ctx context.Context) ([]domain.ScoreEvent, error) {
	query := `
		SELECT s.player_id, p.name, s.score, s.stars, s.created_at
		FROM game_scores s
		JOIN players p ON p.id = s.player_id
		ORDER BY s.created_at ASC, s.id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing score events: %w", err)
	}
	defer rows.Close()

	var events []domain.ScoreEvent
	for rows.Next() {
		var ev domain.ScoreEvent
		if err := rows.Scan(&ev.PlayerID, &ev.PlayerName, &ev.Score, &ev.Stars, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning score event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListPlayerScores retrieves a player's most recent runs.
func (r *Repository) ListPlayerScores(ctx context.Context, playerID string, limit int) ([]domain.GameScore, error) {
	query := `
		SELECT id, player_id, score, stars, level_completed, game_duration, created_at
		FROM game_scores
		WHERE player_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing player scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.GameScore
	for rows.Next() {
		var s domain.GameScore
		err := rows.Scan(&s.ID, &s.PlayerID, &s.Score, &s.Stars, &s.LevelCompleted, &s.GameDuration, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// CountScores returns the total number of rows in the score log.
func (r *Repository) CountScores(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM game_scores`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting scores: %w", err)
	}
	return count, nil
}
