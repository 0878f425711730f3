package routes

import (
	"collabmatch_sync/controllers"
	"collabmatch_sync/services"

	"github.com/gorilla/mux"
)

// RegisterScoreRoutes sets up routes for rizz scores under /api/rizz
func RegisterScoreRoutes(r *mux.Router, scoreService *services.ScoreService) {
	controller := controllers.NewScoreController(scoreService)

	scoreRouter := r.PathPrefix("/api/rizz").Subrouter()

	scoreRouter.HandleFunc("/score", controller.HandleGetRizzScore).Methods("GET")
	scoreRouter.HandleFunc("/recalculate", controller.HandleRecalculate).Methods("POST")
	scoreRouter.HandleFunc("/leaderboard", controller.HandleLeaderboard).Methods("GET")
}
