package controllers

import (
	"encoding/json"
	"log"
	"net/http"

	"collabmatch_sync/models"
	"collabmatch_sync/services"
)

// FilterController handles HTTP requests for the suggestion feed filters
type FilterController struct {
	FilterService *services.FilterService
}

// NewFilterController creates a new FilterController instance
func NewFilterController(filterService *services.FilterService) *FilterController {
	return &FilterController{FilterService: filterService}
}

type filterStateResponse struct {
	Filters           models.FilterState `json:"filters"`
	HasActiveFilters  bool               `json:"hasActiveFilters"`
	ActiveFilterCount int                `json:"activeFilterCount"`
}

func (fc *FilterController) writeState(w http.ResponseWriter) {
	WriteJSONResponse(w, http.StatusOK, filterStateResponse{
		Filters:           fc.FilterService.State(),
		HasActiveFilters:  fc.FilterService.HasActiveFilters(),
		ActiveFilterCount: fc.FilterService.ActiveFilterCount(),
	})
}

// HandleGetFilters serves the current filter state
func (fc *FilterController) HandleGetFilters(w http.ResponseWriter, r *http.Request) {
	fc.writeState(w)
}

// HandleUpdateFilters applies a partial filter update
func (fc *FilterController) HandleUpdateFilters(w http.ResponseWriter, r *http.Request) {
	var update models.FilterUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Println("Invalid request payload:", err)
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	fc.FilterService.UpdateFilters(update)
	fc.writeState(w)
}

// HandleResetFilters restores every filter to its default
func (fc *FilterController) HandleResetFilters(w http.ResponseWriter, r *http.Request) {
	fc.FilterService.ResetFilters()
	fc.writeState(w)
}

// HandleSearch updates the debounced search term
func (fc *FilterController) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Search string `json:"search"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		log.Println("Invalid request payload:", err)
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	fc.FilterService.SetSearch(request.Search)
	WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Search term accepted"})
}
