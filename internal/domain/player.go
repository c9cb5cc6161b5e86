package domain

import "time"

// Player is a durable player identity, created once per distinct name.
// Immutable after creation except for UpdatedAt.
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlayerInfo is a lightweight player projection used for caching.
// Aggregate fields are zero until the player's first ranking refresh.
type PlayerInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TotalStars  int    `json:"total_stars"`
	GamesPlayed int    `json:"games_played"`
	BestScore   int    `json:"best_score"`
}
