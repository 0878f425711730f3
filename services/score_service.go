package services

import (
	"context"
	"time"

	"collabmatch_sync/cache"
	"collabmatch_sync/models"
)

// ScoreAPI is the slice of the remote client the score reads need.
type ScoreAPI interface {
	GetRizzScore(ctx context.Context) (*models.RizzScore, error)
	RecalculateRizzScore(ctx context.Context) (*models.RizzScore, error)
	GetLeaderboard(ctx context.Context, q LeaderboardQuery) (*models.Leaderboard, error)
}

// ScoreService serves the rizz score and the leaderboard through the cache.
type ScoreService struct {
	Cache  *cache.Store
	Client ScoreAPI
}

// RizzScore returns the caller's current score.
func (s *ScoreService) RizzScore(ctx context.Context) (cache.Entry, error) {
	key := models.ClassRizzScore
	s.Cache.RegisterFetcher(key, func(ctx context.Context) (any, error) {
		return s.Client.GetRizzScore(ctx)
	})
	return s.Cache.Fetch(ctx, key, false)
}

// Recalculate triggers a server-side recompute. It is a write: never
// retried here, and the fresh score replaces the cached one directly. Rank
// movement can show up on the board too, so the leaderboard goes stale.
func (s *ScoreService) Recalculate(ctx context.Context) (*models.RizzScore, error) {
	score, err := s.Client.RecalculateRizzScore(ctx)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(models.ClassRizzScore, score, time.Now())
	s.Cache.InvalidateClass(models.ClassLeaderboard)
	return score, nil
}

// Leaderboard returns a ranked creator list for one filter combination.
func (s *ScoreService) Leaderboard(ctx context.Context, q LeaderboardQuery) (cache.Entry, error) {
	params := map[string]any{}
	if q.Niche != "" {
		params["niche"] = q.Niche
	}
	if q.Location != "" {
		params["location"] = q.Location
	}
	if q.Timeframe != "" {
		params["timeframe"] = q.Timeframe
	}
	if q.Limit > 0 {
		params["limit"] = q.Limit
	}
	key := cache.BuildKey(models.ClassLeaderboard, params)
	query := q
	s.Cache.RegisterFetcher(key, func(ctx context.Context) (any, error) {
		return s.Client.GetLeaderboard(ctx, query)
	})
	return s.Cache.Fetch(ctx, key, false)
}
