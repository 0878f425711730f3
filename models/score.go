package models

import "time"

// RizzScore is the user's own standing, recomputed server-side.
type RizzScore struct {
	UserID     string             `json:"userId"`
	Score      float64            `json:"score"`
	Breakdown  map[string]float64 `json:"breakdown,omitempty"`
	Rank       int                `json:"rank,omitempty"`
	Percentile float64            `json:"percentile,omitempty"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// LeaderboardEntry is one ranked row of the creator leaderboard.
type LeaderboardEntry struct {
	UserID   string  `json:"userId"`
	Name     string  `json:"name"`
	Avatar   string  `json:"avatar,omitempty"`
	Rank     int     `json:"rank"`
	Score    float64 `json:"score"`
	Niche    string  `json:"niche,omitempty"`
	Location string  `json:"location,omitempty"`
}

// Leaderboard is a ranked list for one (niche, location, timeframe) view.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	Niche     string             `json:"niche,omitempty"`
	Location  string             `json:"location,omitempty"`
	Timeframe string             `json:"timeframe,omitempty"`
}
