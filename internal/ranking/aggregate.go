// Package ranking computes leaderboard aggregates as a pure fold over
// the immutable score event log. It holds no state of its own: callers
// may invoke it eagerly after a write or lazily before a read and get
// the same answer for the same log.
package ranking

import (
	"sort"
	"time"

	"github.com/geometry-runner/internal/domain"
)

// Row is one player's aggregate with its dense ranking position.
type Row struct {
	PlayerID    string
	PlayerName  string
	TotalScore  int
	TotalStars  int
	GamesPlayed int
	BestScore   int
	Position    int
}

// Aggregate groups the log by player and orders players by total score
// descending. Positions run 1..k with no gaps; ties on total score break
// by earliest first submission, then player id, so the ordering is
// deterministic and stable across repeated calls for unchanged data.
func Aggregate(events []domain.ScoreEvent) []Row {
	type acc struct {
		row       Row
		firstSeen time.Time
	}
	byPlayer := make(map[string]*acc)
	for _, ev := range events {
		a, ok := byPlayer[ev.PlayerID]
		if !ok {
			a = &acc{
				row:       Row{PlayerID: ev.PlayerID, PlayerName: ev.PlayerName},
				firstSeen: ev.CreatedAt,
			}
			byPlayer[ev.PlayerID] = a
		}
		a.row.TotalScore += ev.Score
		a.row.TotalStars += ev.Stars
		a.row.GamesPlayed++
		if ev.Score > a.row.BestScore {
			a.row.BestScore = ev.Score
		}
		if ev.CreatedAt.Before(a.firstSeen) {
			a.firstSeen = ev.CreatedAt
		}
	}

	accs := make([]*acc, 0, len(byPlayer))
	for _, a := range byPlayer {
		accs = append(accs, a)
	}
	sort.Slice(accs, func(i, j int) bool {
		a, b := accs[i], accs[j]
		if a.row.TotalScore != b.row.TotalScore {
			return a.row.TotalScore > b.row.TotalScore
		}
		if !a.firstSeen.Equal(b.firstSeen) {
			return a.firstSeen.Before(b.firstSeen)
		}
		return a.row.PlayerID < b.row.PlayerID
	})

	rows := make([]Row, len(accs))
	for i, a := range accs {
		a.row.Position = i + 1
		rows[i] = a.row
	}
	return rows
}

// TopPlayers returns at most n denormalized leaderboard entries.
func TopPlayers(events []domain.ScoreEvent, n int) []domain.TopPlayer {
	rows := Aggregate(events)
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

// For locates one player's aggregate and rank among all players. The
// second return is false when the player has no submitted scores.
func For(events []domain.ScoreEvent, playerID string) (domain.PlayerRanking, bool) {
	for _, r := range Aggregate(events) {
		if r.PlayerID == playerID {
			return domain.PlayerRanking{
				PlayerID:        r.PlayerID,
				TotalScore:      r.TotalScore,
				TotalStars:      r.TotalStars,
				GamesPlayed:     r.GamesPlayed,
				BestScore:       r.BestScore,
				RankingPosition: r.Position,
			}, true
		}
	}
	return domain.PlayerRanking{}, false
}
