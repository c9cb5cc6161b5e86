package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/geometry-runner/internal/config"
	"github.com/geometry-runner/internal/domain"
	"github.com/geometry-runner/internal/service"
	"github.com/geometry-runner/internal/testutil"
)

func newService(store *testutil.FakeStore, cache *testutil.FakeCache) *service.GameService {
	cfg := &config.LeaderboardConfig{DefaultLimit: 10, MaxLimit: 100, CacheTTL: 30 * time.Second}
	return service.NewGameService(store, cache, cfg, testutil.Logger())
}

func TestResolvePlayer(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty player directory", t, func() {
		store := testutil.NewFakeStore()
		svc := newService(store, testutil.NewFakeCache())

		Convey("When a new name logs in", func() {
			p, err := svc.ResolvePlayer(ctx, "Ana", "ana@example.com")
			So(err, ShouldBeNil)

			Convey("Then a player is created with a derived avatar", func() {
				So(p.ID, ShouldNotBeEmpty)
				So(p.Name, ShouldEqual, "Ana")
				So(p.Email, ShouldEqual, "ana@example.com")
				So(p.AvatarURL, ShouldContainSubstring, "seed=Ana")
			})

			Convey("And a repeat login resolves to the same identity", func() {
				again, err := svc.ResolvePlayer(ctx, "Ana", "other@example.com")
				So(err, ShouldBeNil)
				So(again.ID, ShouldEqual, p.ID)
				// Email is never updated on repeat login.
				So(again.Email, ShouldEqual, "ana@example.com")
				So(store.PlayerCount(), ShouldEqual, 1)
			})
		})

		Convey("When the name is empty", func() {
			_, err := svc.ResolvePlayer(ctx, "", "")
			So(err, ShouldEqual, domain.ErrInvalidRequest)
		})

		Convey("When names differ only by case", func() {
			p1, err := svc.ResolvePlayer(ctx, "ana", "")
			So(err, ShouldBeNil)
			p2, err := svc.ResolvePlayer(ctx, "Ana", "")
			So(err, ShouldBeNil)

			Convey("Then they are distinct players", func() {
				So(p1.ID, ShouldNotEqual, p2.ID)
				So(store.PlayerCount(), ShouldEqual, 2)
			})
		})
	})
}

func TestSubmitScoreAndRankings(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new player Ana", t, func() {
		store := testutil.NewFakeStore()
		cache := testutil.NewFakeCache()
		svc := newService(store, cache)

		ana, err := svc.ResolvePlayer(ctx, "Ana", "")
		So(err, ShouldBeNil)

		Convey("When she submits runs of 100 and 300", func() {
			So(svc.SubmitScore(ctx, domain.ScoreSubmission{
				PlayerID: ana.ID, Score: 100, Stars: 2, LevelCompleted: 2, GameDuration: 40,
			}), ShouldBeNil)
			So(svc.SubmitScore(ctx, domain.ScoreSubmission{
				PlayerID: ana.ID, Score: 300, Stars: 3, LevelCompleted: 6, GameDuration: 95,
			}), ShouldBeNil)

			Convey("Then her aggregate folds both runs", func() {
				r, err := svc.RankingFor(ctx, ana.ID)
				So(err, ShouldBeNil)
				So(r.TotalScore, ShouldEqual, 400)
				So(r.TotalStars, ShouldEqual, 5)
				So(r.GamesPlayed, ShouldEqual, 2)
				So(r.BestScore, ShouldEqual, 300)
				So(r.RankingPosition, ShouldEqual, 1)
			})

			Convey("And the top list carries her denormalized row", func() {
				top, err := svc.TopPlayers(ctx, 10)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 1)
				So(top[0].PlayerName, ShouldEqual, "Ana")
				So(top[0].TotalScore, ShouldEqual, 400)
				So(top[0].RankingPosition, ShouldEqual, 1)
			})

			Convey("And her run history reads newest first", func() {
				scores, err := svc.PlayerScores(ctx, ana.ID, 10)
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 2)
				So(scores[0].Score, ShouldEqual, 300)
				So(scores[1].Score, ShouldEqual, 100)
			})
		})

		Convey("When a submission is invalid", func() {
			So(svc.SubmitScore(ctx, domain.ScoreSubmission{PlayerID: ana.ID, Score: -1}),
				ShouldEqual, domain.ErrInvalidScore)
			So(svc.SubmitScore(ctx, domain.ScoreSubmission{PlayerID: ana.ID, Score: 10, Stars: 4}),
				ShouldEqual, domain.ErrInvalidScore)
			So(svc.SubmitScore(ctx, domain.ScoreSubmission{Score: 10}),
				ShouldEqual, domain.ErrInvalidRequest)
		})

		Convey("When she has not submitted anything", func() {
			_, err := svc.RankingFor(ctx, ana.ID)
			So(err, ShouldEqual, domain.ErrPlayerNotRanked)
		})

		Convey("When the player id is unknown", func() {
			_, err := svc.RankingFor(ctx, "missing")
			So(err, ShouldEqual, domain.ErrPlayerNotFound)
		})
	})

	Convey("Given the score log store is unreachable", t, func() {
		store := testutil.NewFakeStore()
		cache := testutil.NewFakeCache()
		svc := newService(store, cache)

		ana, err := svc.ResolvePlayer(ctx, "Ana", "")
		So(err, ShouldBeNil)
		store.FailInserts(errors.New("connection refused"))

		Convey("When a submission fails", func() {
			err := svc.SubmitScore(ctx, domain.ScoreSubmission{PlayerID: ana.ID, Score: 250, Stars: 2})
			So(err, ShouldNotBeNil)

			Convey("Then the leaderboard is unchanged", func() {
				store.FailInserts(nil)
				top, err := svc.TopPlayers(ctx, 10)
				So(err, ShouldBeNil)
				So(top, ShouldBeEmpty)
			})
		})
	})
}

func TestTopPlayersOrderingAndLimits(t *testing.T) {
	ctx := context.Background()

	Convey("Given several players with submitted runs", t, func() {
		store := testutil.NewFakeStore()
		svc := newService(store, testutil.NewFakeCache())

		seed := map[string][]int{
			"Blaze": {100, 50},
			"Nova":  {500},
			"Ghost": {200, 200},
		}
		for name, runs := range seed {
			p, err := svc.ResolvePlayer(ctx, name, "")
			So(err, ShouldBeNil)
			for _, score := range runs {
				So(svc.SubmitScore(ctx, domain.ScoreSubmission{PlayerID: p.ID, Score: score}), ShouldBeNil)
			}
		}

		Convey("Then the top list is sorted with strictly increasing positions", func() {
			top, err := svc.TopPlayers(ctx, 10)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 3)
			So(top[0].PlayerName, ShouldEqual, "Nova")
			for i, entry := range top {
				So(entry.RankingPosition, ShouldEqual, i+1)
				if i > 0 {
					So(entry.TotalScore, ShouldBeLessThanOrEqualTo, top[i-1].TotalScore)
				}
			}
		})

		Convey("Then the limit argument caps the result", func() {
			top, err := svc.TopPlayers(ctx, 2)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 2)
		})
	})

	Convey("Given a submission, the cached projection is refreshed eagerly", t, func() {
		store := testutil.NewFakeStore()
		cache := testutil.NewFakeCache()
		svc := newService(store, cache)

		p, err := svc.ResolvePlayer(ctx, "Nova", "")
		So(err, ShouldBeNil)
		So(svc.SubmitScore(ctx, domain.ScoreSubmission{PlayerID: p.ID, Score: 150, Stars: 1}), ShouldBeNil)

		top, ok := cache.Top()
		So(ok, ShouldBeTrue)
		So(top, ShouldHaveLength, 1)
		So(top[0].PlayerName, ShouldEqual, "Nova")
	})
}

func TestRealtimeRankingFastPath(t *testing.T) {
	ctx := context.Background()

	Convey("Given players with submitted runs", t, func() {
		store := testutil.NewFakeStore()
		cache := testutil.NewFakeCache()
		svc := newService(store, cache)

		ana, err := svc.ResolvePlayer(ctx, "Ana", "")
		So(err, ShouldBeNil)
		rui, err := svc.ResolvePlayer(ctx, "Rui", "")
		So(err, ShouldBeNil)

		So(svc.SubmitScore(ctx, domain.ScoreSubmission{PlayerID: ana.ID, Score: 100, Stars: 1}), ShouldBeNil)
		So(svc.SubmitScore(ctx, domain.ScoreSubmission{PlayerID: ana.ID, Score: 300, Stars: 3, LevelCompleted: 6}), ShouldBeNil)
		So(svc.SubmitScore(ctx, domain.ScoreSubmission{PlayerID: rui.ID, Score: 150, Stars: 1}), ShouldBeNil)

		Convey("When the score log becomes unreadable", func() {
			store.FailListEvents(errors.New("connection refused"))

			Convey("Then rankings are still served from the realtime cache", func() {
				r, err := svc.RankingFor(ctx, ana.ID)
				So(err, ShouldBeNil)
				So(r.RankingPosition, ShouldEqual, 1)
				So(r.TotalScore, ShouldEqual, 400)
				So(r.TotalStars, ShouldEqual, 4)
				So(r.GamesPlayed, ShouldEqual, 2)
				So(r.BestScore, ShouldEqual, 300)

				r, err = svc.RankingFor(ctx, rui.ID)
				So(err, ShouldBeNil)
				So(r.RankingPosition, ShouldEqual, 2)
				So(r.TotalScore, ShouldEqual, 150)
			})
		})

		Convey("When a player's realtime entry is missing", func() {
			zoe, err := svc.ResolvePlayer(ctx, "Zoe", "")
			So(err, ShouldBeNil)

			Convey("Then the fold is consulted and reports them unranked", func() {
				_, err := svc.RankingFor(ctx, zoe.ID)
				So(err, ShouldEqual, domain.ErrPlayerNotRanked)
			})
		})
	})
}

func TestFailedProjectionWriteInvalidatesCache(t *testing.T) {
	ctx := context.Background()

	Convey("Given a player with a cached leaderboard projection", t, func() {
		store := testutil.NewFakeStore()
		cache := testutil.NewFakeCache()
		svc := newService(store, cache)

		p, err := svc.ResolvePlayer(ctx, "Ana", "")
		So(err, ShouldBeNil)
		So(svc.SubmitScore(ctx, domain.ScoreSubmission{PlayerID: p.ID, Score: 100, Stars: 1}), ShouldBeNil)
		_, ok := cache.Top()
		So(ok, ShouldBeTrue)

		Convey("When the next refresh cannot write the projection", func() {
			cache.FailTopWrites(errors.New("redis down"))
			So(svc.SubmitScore(ctx, domain.ScoreSubmission{PlayerID: p.ID, Score: 200, Stars: 2}), ShouldBeNil)

			Convey("Then the stale projection is dropped rather than served", func() {
				_, ok := cache.Top()
				So(ok, ShouldBeFalse)
			})
		})
	})
}
