package routes

import (
	"collabmatch_sync/controllers"
	"collabmatch_sync/services"

	"github.com/gorilla/mux"
)

// RegisterActionRoutes sets up routes for match actions
func RegisterActionRoutes(r *mux.Router, mutationService *services.MutationService) {
	controller := controllers.NewActionController(mutationService)

	matchRouter := r.PathPrefix("/api/matches").Subrouter()
	matchRouter.HandleFunc("/action", controller.HandleMatchAction).Methods("POST")
	matchRouter.HandleFunc("/{matchId}/feedback", controller.HandleFeedback).Methods("POST")

	userRouter := r.PathPrefix("/api/users").Subrouter()
	userRouter.HandleFunc("/{userId}/block", controller.HandleBlock).Methods("POST")
}
