package domain

// PlayerRanking is the materialized per-player aggregate over the score log.
// Read-only to the game layer; recomputed, never independently mutated.
type PlayerRanking struct {
	PlayerID        string `json:"player_id"`
	TotalScore      int    `json:"total_score"`
	TotalStars      int    `json:"total_stars"`
	GamesPlayed     int    `json:"games_played"`
	BestScore       int    `json:"best_score"`
	RankingPosition int    `json:"ranking_position"`
}

// TopPlayer is the denormalized top-N projection joined with Player.Name.
type TopPlayer struct {
	PlayerName      string `json:"player_name"`
	TotalScore      int    `json:"total_score"`
	TotalStars      int    `json:"total_stars"`
	GamesPlayed     int    `json:"games_played"`
	BestScore       int    `json:"best_score"`
	RankingPosition int    `json:"ranking_position"`
}
