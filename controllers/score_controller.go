package controllers

import (
	"net/http"

	"collabmatch_sync/services"
	"collabmatch_sync/utils"
)

// ScoreController handles HTTP requests for rizz scores and the leaderboard
type ScoreController struct {
	ScoreService *services.ScoreService
}

// NewScoreController creates a new ScoreController instance
func NewScoreController(scoreService *services.ScoreService) *ScoreController {
	return &ScoreController{ScoreService: scoreService}
}

// HandleGetRizzScore serves the caller's current rizz score
func (sc *ScoreController) HandleGetRizzScore(w http.ResponseWriter, r *http.Request) {
	entry, err := sc.ScoreService.RizzScore(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteEntry(w, entry)
}

// HandleRecalculate triggers a server-side score recompute
func (sc *ScoreController) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	score, err := sc.ScoreService.Recalculate(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, score)
}

// HandleLeaderboard serves a ranked creator list
func (sc *ScoreController) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	query := services.LeaderboardQuery{
		Niche:     r.URL.Query().Get("niche"),
		Location:  r.URL.Query().Get("location"),
		Timeframe: r.URL.Query().Get("timeframe"),
		Limit:     utils.ParseIntParam(r, "limit", 0),
	}

	entry, err := sc.ScoreService.Leaderboard(r.Context(), query)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteEntry(w, entry)
}
