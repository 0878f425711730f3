package routes

import (
	"collabmatch_sync/controllers"
	"collabmatch_sync/services"

	"github.com/gorilla/mux"
)

// RegisterSuggestionRoutes sets up routes for the suggestion feed under /api/matches
func RegisterSuggestionRoutes(r *mux.Router, suggestionService *services.SuggestionService) {
	controller := controllers.NewSuggestionController(suggestionService)

	matchRouter := r.PathPrefix("/api/matches").Subrouter()

	matchRouter.HandleFunc("/suggestions", controller.HandleListSuggestions).Methods("GET")
	matchRouter.HandleFunc("/history", controller.HandleHistory).Methods("GET")
	matchRouter.HandleFunc("/compatibility/{userId}", controller.HandleCompatibility).Methods("GET")
}
