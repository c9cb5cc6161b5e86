package game

import (
	"context"
	"fmt"
	"strconv"
)

// LocalBestKey is the key under which the advisory local best score is
// stored. Absence reads as 0.
const LocalBestKey = "geometryHighScore"

// KV is the narrow key-value surface backing the local best. It is a
// single-device, non-authoritative store; the durable ranking never
// reads from it.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Stars derives stars earned from the run score, clamped to 3.
func Stars(score int) int {
	s := score / 100
	if s > 3 {
		return 3
	}
	return s
}

// Level derives the level-completed indicator from the run score.
func Level(score int) int {
	return score / 50
}

// Summary is the local outcome of one finished run. It is shown to the
// player even when durable submission fails.
type Summary struct {
	Score   int  `json:"score"`
	Stars   int  `json:"stars"`
	Level   int  `json:"level_completed"`
	Best    int  `json:"best"`
	NewBest bool `json:"new_best"`
}

// ScoreKeeper tracks the persisted local best across runs.
type ScoreKeeper struct {
	kv   KV
	best int
}

func NewScoreKeeper(kv KV) *ScoreKeeper {
	return &ScoreKeeper{kv: kv}
}

// Load reads the local best from the store. An absent key is 0.
func (k *ScoreKeeper) Load(ctx context.Context) error {
	raw, ok, err := k.kv.Get(ctx, LocalBestKey)
	if err != nil {
		return fmt.Errorf("reading local best: %w", err)
	}
	if !ok {
		k.best = 0
		return nil
	}
	best, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("parsing local best %q: %w", raw, err)
	}
	k.best = best
	return nil
}

// Best returns the last loaded or finalized local best.
func (k *ScoreKeeper) Best() int { return k.best }

// Finalize derives the run outcome and overwrites the local best when
// beaten. The returned summary is valid even when the write fails; the
// caller logs the error and carries on.
func (k *ScoreKeeper) Finalize(ctx context.Context, score int) (Summary, error) {
	sum := Summary{
		Score: score,
		Stars: Stars(score),
		Level: Level(score),
		Best:  k.best,
	}
	if score <= k.best {
		return sum, nil
	}
	k.best = score
	sum.Best = score
	sum.NewBest = true
	if err := k.kv.Set(ctx, LocalBestKey, strconv.Itoa(score)); err != nil {
		return sum, fmt.Errorf("writing local best: %w", err)
	}
	return sum, nil
}
