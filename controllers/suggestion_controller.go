package controllers

import (
	"net/http"

	"collabmatch_sync/services"
	"collabmatch_sync/utils"

	"github.com/gorilla/mux"
)

// SuggestionController handles HTTP requests for the suggestion feed
type SuggestionController struct {
	SuggestionService *services.SuggestionService
}

// NewSuggestionController creates a new SuggestionController instance
func NewSuggestionController(suggestionService *services.SuggestionService) *SuggestionController {
	return &SuggestionController{SuggestionService: suggestionService}
}

// HandleListSuggestions serves one page of match suggestions
func (sc *SuggestionController) HandleListSuggestions(w http.ResponseWriter, r *http.Request) {
	page := utils.ParseIntParam(r, "page", 1)
	limit := utils.ParseIntParam(r, "limit", 20)
	refresh := utils.ParseBoolParam(r, "refresh")

	entry, err := sc.SuggestionService.List(r.Context(), page, limit, refresh)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteEntry(w, entry)
}

// HandleHistory serves the match history with optional status and date filters
func (sc *SuggestionController) HandleHistory(w http.ResponseWriter, r *http.Request) {
	query := services.HistoryQuery{
		Page:   utils.ParseIntParam(r, "page", 1),
		Limit:  utils.ParseIntParam(r, "limit", 20),
		Status: r.URL.Query().Get("status"),
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
		Sort:   r.URL.Query().Get("sort"),
	}

	entry, err := sc.SuggestionService.History(r.Context(), query)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteEntry(w, entry)
}

// HandleCompatibility serves the compatibility breakdown for one target user
func (sc *SuggestionController) HandleCompatibility(w http.ResponseWriter, r *http.Request) {
	targetUserID := mux.Vars(r)["userId"]
	if targetUserID == "" {
		WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}
	useAI := utils.ParseBoolParam(r, "useAi")

	entry, err := sc.SuggestionService.Compatibility(r.Context(), targetUserID, useAI)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteEntry(w, entry)
}
