package services

import (
	"sync"
	"time"

	"collabmatch_sync/cache"
	"collabmatch_sync/models"
)

// FilterService holds the active filter predicates and derives the cache
// keys the suggestion queries live under. Changing a filter only changes the
// derived key: pages cached under earlier filter combinations stay cached,
// so toggling back to a previous combination serves instantly.
type FilterService struct {
	mu    sync.Mutex
	state models.FilterState

	searchDelay time.Duration
	searchTimer *time.Timer
}

// NewFilterService starts with the unconstrained defaults.
func NewFilterService() *FilterService {
	return &FilterService{searchDelay: 300 * time.Millisecond}
}

// State returns a copy of the current filter state.
func (fs *FilterService) State() models.FilterState {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.copyLocked()
}

func (fs *FilterService) copyLocked() models.FilterState {
	state := fs.state
	state.Niches = append([]string(nil), fs.state.Niches...)
	state.Platforms = append([]string(nil), fs.state.Platforms...)
	state.Statuses = append([]string(nil), fs.state.Statuses...)
	return state
}

// UpdateFilters merges the non-nil fields of update into the current state
// and returns the result.
func (fs *FilterService) UpdateFilters(update models.FilterUpdate) models.FilterState {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if update.Niches != nil {
		fs.state.Niches = append([]string(nil), (*update.Niches)...)
	}
	if update.Platforms != nil {
		fs.state.Platforms = append([]string(nil), (*update.Platforms)...)
	}
	if update.Statuses != nil {
		fs.state.Statuses = append([]string(nil), (*update.Statuses)...)
	}
	if update.AudienceMin != nil {
		fs.state.AudienceMin = *update.AudienceMin
	}
	if update.AudienceMax != nil {
		fs.state.AudienceMax = *update.AudienceMax
	}
	if update.RizzMin != nil {
		fs.state.RizzMin = *update.RizzMin
	}
	if update.RizzMax != nil {
		fs.state.RizzMax = *update.RizzMax
	}
	if update.Location != nil {
		fs.state.Location = *update.Location
	}
	if update.RadiusKm != nil {
		fs.state.RadiusKm = *update.RadiusKm
	}
	if update.VerifiedOnly != nil {
		fs.state.VerifiedOnly = *update.VerifiedOnly
	}
	if update.Search != nil {
		fs.state.Search = *update.Search
	}
	return fs.copyLocked()
}

// ResetFilters restores the unconstrained defaults and drops any pending
// debounced search.
func (fs *FilterService) ResetFilters() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.searchTimer != nil {
		fs.searchTimer.Stop()
		fs.searchTimer = nil
	}
	fs.state = models.FilterState{}
}

// SetSearch debounces free-text search input: each keystroke cancels the
// previously scheduled apply before scheduling its own.
func (fs *FilterService) SetSearch(term string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.searchTimer != nil {
		fs.searchTimer.Stop()
	}
	fs.searchTimer = time.AfterFunc(fs.searchDelay, func() {
		fs.mu.Lock()
		fs.state.Search = term
		fs.mu.Unlock()
	})
}

// HasActiveFilters reports whether any field differs from the unconstrained
// default.
func (fs *FilterService) HasActiveFilters() bool {
	return fs.ActiveFilterCount() > 0
}

// ActiveFilterCount counts independently set fields; it drives the filter
// badge in the UI.
func (fs *FilterService) ActiveFilterCount() int {
	state := fs.State()
	count := 0
	if len(state.Niches) > 0 {
		count++
	}
	if len(state.Platforms) > 0 {
		count++
	}
	if len(state.Statuses) > 0 {
		count++
	}
	if state.AudienceMin > 0 || state.AudienceMax > 0 {
		count++
	}
	if state.RizzMin > 0 || state.RizzMax > 0 {
		count++
	}
	if state.Location != "" && state.Location != models.LocationAny {
		count++
	}
	if state.VerifiedOnly {
		count++
	}
	if state.Search != "" {
		count++
	}
	return count
}

// SuggestionsKey derives the cache key for one suggestions page under the
// current filters.
func (fs *FilterService) SuggestionsKey(page, limit int) string {
	return cache.BuildKey(models.ClassSuggestions, fs.queryParams(page, limit))
}

func (fs *FilterService) queryParams(page, limit int) map[string]any {
	state := fs.State()
	params := map[string]any{"page": page, "limit": limit}
	if len(state.Niches) > 0 {
		params["niches"] = state.Niches
	}
	if len(state.Platforms) > 0 {
		params["platforms"] = state.Platforms
	}
	if len(state.Statuses) > 0 {
		params["statuses"] = state.Statuses
	}
	if state.AudienceMin > 0 {
		params["audienceMin"] = state.AudienceMin
	}
	if state.AudienceMax > 0 {
		params["audienceMax"] = state.AudienceMax
	}
	if state.RizzMin > 0 {
		params["rizzMin"] = state.RizzMin
	}
	if state.RizzMax > 0 {
		params["rizzMax"] = state.RizzMax
	}
	if state.Location != "" && state.Location != models.LocationAny {
		params["location"] = state.Location
		if state.RadiusKm > 0 {
			params["radiusKm"] = state.RadiusKm
		}
	}
	if state.VerifiedOnly {
		params["verified"] = true
	}
	if state.Search != "" {
		params["search"] = state.Search
	}
	return params
}
