package domain

import "time"

// GameScore is one immutable row of the score event log. Rows are appended
// on run completion and never updated or deleted; every ranking is a fold
// over this log.
type GameScore struct {
	ID             string    `json:"id"`
	PlayerID       string    `json:"player_id"`
	Score          int       `json:"score"`
	Stars          int       `json:"stars"`
	LevelCompleted int       `json:"level_completed"`
	GameDuration   int       `json:"game_duration"`
	CreatedAt      time.Time `json:"created_at"`
}

// ScoreSubmission is a request to append one completed run to the log.
type ScoreSubmission struct {
	PlayerID       string `json:"player_id"`
	Score          int    `json:"score"`
	Stars          int    `json:"stars"`
	LevelCompleted int    `json:"level_completed"`
	GameDuration   int    `json:"game_duration"`
}

// ScoreEvent is a log row joined with the player's display name, the input
// shape consumed by the ranking aggregator.
type ScoreEvent struct {
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Score      int       `json:"score"`
	Stars      int       `json:"stars"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunEvent is an externally produced run result, e.g. consumed from Kafka.
// The player is identified by display name and resolved on ingestion.
type RunEvent struct {
	PlayerName     string    `json:"player_name"`
	Email          string    `json:"email,omitempty"`
	Score          int       `json:"score"`
	Stars          int       `json:"stars"`
	LevelCompleted int       `json:"level_completed"`
	GameDuration   int       `json:"game_duration"`
	Timestamp      time.Time `json:"timestamp"`
}
