package controllers

import (
	"encoding/json"
	"log"
	"net/http"

	"collabmatch_sync/models"
	"collabmatch_sync/services"

	"github.com/gorilla/mux"
)

// ActionController handles HTTP requests for match actions
type ActionController struct {
	MutationService *services.MutationService
}

// NewActionController creates a new ActionController instance
func NewActionController(mutationService *services.MutationService) *ActionController {
	return &ActionController{MutationService: mutationService}
}

// HandleMatchAction processes match actions such as "like", "pass", "view"
func (ac *ActionController) HandleMatchAction(w http.ResponseWriter, r *http.Request) {
	var request struct {
		MatchID  string `json:"matchId"`
		Action   string `json:"action"`
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		log.Println("Invalid request payload:", err)
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if request.MatchID == "" || request.Action == "" {
		log.Println("Missing required fields in match action request")
		http.Error(w, "matchId and action are required", http.StatusBadRequest)
		return
	}

	outcome, err := ac.MutationService.Act(r.Context(), request.MatchID, request.Action, request.Feedback)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, outcome)
}

// HandleFeedback attaches free-form feedback to a decided match
func (ac *ActionController) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	var request models.MatchFeedback
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		log.Println("Invalid request payload:", err)
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	suggestion, err := ac.MutationService.Feedback(r.Context(), matchID, request.Rating, request.Reasons, request.Comment)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, suggestion)
}

// HandleBlock blocks a creator and purges them from every cached view
func (ac *ActionController) HandleBlock(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	if err := ac.MutationService.Block(r.Context(), userID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "User blocked", "userId": userID})
}
