package game

import (
	"context"
	"errors"
	"testing"
)

type memKV struct {
	data    map[string]string
	failSet bool
}

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	if m.failSet {
		return errors.New("store unreachable")
	}
	m.data[key] = value
	return nil
}

func TestStarsDerivation(t *testing.T) {
	cases := []struct {
		score, want int
	}{
		{0, 0}, {99, 0}, {100, 1}, {199, 1}, {250, 2}, {300, 3}, {1000, 3},
	}
	for _, tc := range cases {
		if got := Stars(tc.score); got != tc.want {
			t.Errorf("Stars(%d) = %d, want %d", tc.score, got, tc.want)
		}
	}
}

func TestLevelDerivation(t *testing.T) {
	cases := []struct {
		score, want int
	}{
		{0, 0}, {49, 0}, {50, 1}, {100, 2}, {300, 6},
	}
	for _, tc := range cases {
		if got := Level(tc.score); got != tc.want {
			t.Errorf("Level(%d) = %d, want %d", tc.score, got, tc.want)
		}
	}
}

func TestScoreKeeperLoadAbsentKeyIsZero(t *testing.T) {
	k := NewScoreKeeper(&memKV{data: map[string]string{}})
	if err := k.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if k.Best() != 0 {
		t.Fatalf("best = %d, want 0", k.Best())
	}
}

func TestScoreKeeperFinalizePersistsNewBest(t *testing.T) {
	kv := &memKV{data: map[string]string{LocalBestKey: "150"}}
	k := NewScoreKeeper(kv)
	if err := k.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	sum, err := k.Finalize(context.Background(), 120)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if sum.NewBest || sum.Best != 150 {
		t.Fatalf("120 should not beat 150: %+v", sum)
	}

	sum, err = k.Finalize(context.Background(), 300)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !sum.NewBest || sum.Best != 300 || sum.Stars != 3 || sum.Level != 6 {
		t.Fatalf("summary = %+v", sum)
	}
	if kv.data[LocalBestKey] != "300" {
		t.Fatalf("persisted best = %q", kv.data[LocalBestKey])
	}
}

func TestScoreKeeperFinalizeSurvivesStoreFailure(t *testing.T) {
	kv := &memKV{data: map[string]string{}, failSet: true}
	k := NewScoreKeeper(kv)
	if err := k.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	sum, err := k.Finalize(context.Background(), 200)
	if err == nil {
		t.Fatalf("expected write error")
	}
	// Outcome is still complete for local display.
	if !sum.NewBest || sum.Best != 200 || sum.Stars != 2 {
		t.Fatalf("summary = %+v", sum)
	}
}
