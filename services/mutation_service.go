package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"collabmatch_sync/cache"
	"collabmatch_sync/models"

	"github.com/google/uuid"
)

// Action classes for single-flight bookkeeping. like/pass/view all race
// over the same status field, so they share one class.
const (
	actionClassStatus   = "status"
	actionClassFeedback = "feedback"
	actionClassBlock    = "block"
)

// MatchActionAPI is the slice of the remote client the coordinator needs.
type MatchActionAPI interface {
	SubmitMatchAction(ctx context.Context, matchID, action, feedback string) (*models.ActionResult, error)
	SubmitFeedback(ctx context.Context, matchID string, rating int, reasons []string, comment string) (*models.MatchSuggestion, error)
	BlockUser(ctx context.Context, userID string) error
}

// inversePatch undoes one key's share of an optimistic edit. Each step is
// scoped to the records the edit touched, so rolling one mutation back
// leaves results committed by overlapping mutations on other matches
// intact.
type inversePatch struct {
	key  string
	undo func(any) any
}

// PendingMutation tracks one optimistic mutation between dispatch and
// settlement. Its inverse patch is recorded while the optimistic edit is
// applied, one step per touched cache entry.
type PendingMutation struct {
	ID          string
	TargetID    string
	ActionClass string

	inverse []inversePatch
}

// ActionOutcome tells the UI what happened, with distinct copy per result.
type ActionOutcome struct {
	Kind       string                 `json:"kind"` // liked | mutual | passed | viewed
	Message    string                 `json:"message"`
	Suggestion models.MatchSuggestion `json:"suggestion"`
	IsMutual   bool                   `json:"isMutual"`
}

// MutationService coordinates optimistic mutations. It patches the cache
// synchronously before the request goes out, so every read between dispatch
// and settlement observes the optimistic state, then on settlement either
// commits the server's authoritative payload or applies the inverse patch.
// Rollback undoes only this mutation's own edit; it never restores whole
// pages, which would clobber a concurrent mutation's committed result or an
// authoritative refetch that landed mid-flight.
type MutationService struct {
	Cache  *cache.Store
	Client MatchActionAPI

	mu       sync.Mutex
	inFlight map[string]*PendingMutation
}

// NewMutationService wires a coordinator against a store and client.
func NewMutationService(store *cache.Store, client MatchActionAPI) *MutationService {
	return &MutationService{
		Cache:    store,
		Client:   client,
		inFlight: make(map[string]*PendingMutation),
	}
}

// begin reserves the (target, class) single-flight slot. A second action on
// the same slot while one is in flight is rejected synchronously rather
// than queued, so two optimistic patches can never race each other.
func (ms *MutationService) begin(targetID, class string) (*PendingMutation, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	slot := targetID + "|" + class
	if _, busy := ms.inFlight[slot]; busy {
		return nil, &ConflictError{Message: "another action on this match is still in flight"}
	}
	pending := &PendingMutation{ID: uuid.NewString(), TargetID: targetID, ActionClass: class}
	ms.inFlight[slot] = pending
	return pending, nil
}

func (ms *MutationService) settle(pending *PendingMutation) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.inFlight, pending.TargetID+"|"+pending.ActionClass)
}

// rollback applies the inverse patch, newest step first.
func (ms *MutationService) rollback(pending *PendingMutation) {
	for i := len(pending.inverse) - 1; i >= 0; i-- {
		ms.Cache.Patch(pending.inverse[i].key, pending.inverse[i].undo)
	}
}

// Act performs like / pass / view on a suggestion.
func (ms *MutationService) Act(ctx context.Context, matchID, action, feedback string) (*ActionOutcome, error) {
	var next string
	switch action {
	case models.ActionLike:
		next = models.StatusLiked
	case models.ActionPass:
		next = models.StatusPassed
	case models.ActionView:
		next = models.StatusViewed
	default:
		return nil, &ValidationError{Op: "submitMatchAction", Message: fmt.Sprintf("invalid action %q", action)}
	}

	pending, err := ms.begin(matchID, actionClassStatus)
	if err != nil {
		return nil, err
	}

	current, known := ms.findCached(matchID)
	if known && !models.CanTransition(current.Status, next) {
		ms.settle(pending)
		return nil, &ValidationError{Op: "submitMatchAction", Message: fmt.Sprintf("cannot %s a %s suggestion", action, current.Status)}
	}

	pending.inverse = ms.applyStatusPatch(matchID, next, current, known)

	result, err := ms.Client.SubmitMatchAction(ctx, matchID, action, feedback)
	if err != nil {
		ms.rollback(pending)
		ms.settle(pending)
		return nil, err
	}

	ms.commitSuggestion(result.Suggestion)
	if result.IsMutual {
		// A mutual match moves both users' standing.
		ms.Cache.InvalidateClass(models.ClassLeaderboard)
		ms.Cache.InvalidateClass(models.ClassRizzScore)
	}
	ms.settle(pending)
	return outcomeFor(action, result), nil
}

// Feedback attaches a 1-5 rating to a settled match.
func (ms *MutationService) Feedback(ctx context.Context, matchID string, rating int, reasons []string, comment string) (*models.MatchSuggestion, error) {
	if rating < 1 || rating > 5 {
		return nil, &ValidationError{Op: "submitFeedback", Message: "rating must be between 1 and 5"}
	}

	pending, err := ms.begin(matchID, actionClassFeedback)
	if err != nil {
		return nil, err
	}

	optimistic := &models.MatchFeedback{Rating: rating, Reasons: append([]string(nil), reasons...), Comment: comment}
	for _, key := range ms.Cache.Keys(models.ClassHistory) {
		ms.Cache.Patch(key, func(data any) any {
			page, ok := data.(*models.SuggestionPage)
			if !ok {
				return data
			}
			index := indexOfSuggestion(page, matchID)
			if index < 0 {
				return data
			}
			orig := page.Suggestions[index]
			pending.inverse = append(pending.inverse, inversePatch{key, func(d any) any {
				p, ok := d.(*models.SuggestionPage)
				if !ok {
					return d
				}
				return replaceSuggestion(p, orig)
			}})
			return setSuggestionFeedback(page, matchID, optimistic)
		})
	}

	updated, err := ms.Client.SubmitFeedback(ctx, matchID, rating, reasons, comment)
	if err != nil {
		ms.rollback(pending)
		ms.settle(pending)
		return nil, err
	}

	for _, key := range ms.Cache.Keys(models.ClassHistory) {
		ms.Cache.Patch(key, func(data any) any {
			page, ok := data.(*models.SuggestionPage)
			if !ok {
				return data
			}
			return replaceSuggestion(page, *updated)
		})
	}
	ms.settle(pending)
	return updated, nil
}

// Block removes every trace of a user from the cached feed. The purge spans
// all cached suggestions and history pages, across every page and filter
// combination, not just the one currently on screen.
func (ms *MutationService) Block(ctx context.Context, userID string) error {
	pending, err := ms.begin(userID, actionClassBlock)
	if err != nil {
		return err
	}

	for _, class := range []string{models.ClassSuggestions, models.ClassHistory} {
		for _, key := range ms.Cache.Keys(class) {
			ms.Cache.Patch(key, func(data any) any {
				page, ok := data.(*models.SuggestionPage)
				if !ok {
					return data
				}
				removed := collectUserSuggestions(page, userID)
				if len(removed) == 0 {
					return data
				}
				pending.inverse = append(pending.inverse, inversePatch{key, func(d any) any {
					p, ok := d.(*models.SuggestionPage)
					if !ok {
						return d
					}
					for _, r := range removed {
						p = insertSuggestionAt(p, r.index, r.suggestion)
					}
					return p
				}})
				return removeUserSuggestions(page, userID)
			})
		}
	}

	if err := ms.Client.BlockUser(ctx, userID); err != nil {
		ms.rollback(pending)
		ms.settle(pending)
		return err
	}

	// Pairwise scores against a blocked user are dead weight.
	ms.Cache.Invalidate(func(key string) bool {
		if cache.ClassOf(key) != models.ClassCompatibility {
			return false
		}
		params := cache.KeyParams(key)
		var target string
		if raw, ok := params["targetUserId"]; ok {
			json.Unmarshal(raw, &target)
		}
		return target == userID
	})
	ms.settle(pending)
	return nil
}

// applyStatusPatch applies the optimistic edit and records its inverse:
// like/pass removes the card from every cached suggestions page, view marks
// it viewed in place, and the history pages that could show the suggestion
// get it with the new status.
func (ms *MutationService) applyStatusPatch(matchID, next string, current models.MatchSuggestion, known bool) []inversePatch {
	var inverse []inversePatch
	for _, key := range ms.Cache.Keys(models.ClassSuggestions) {
		ms.Cache.Patch(key, func(data any) any {
			page, ok := data.(*models.SuggestionPage)
			if !ok {
				return data
			}
			index := indexOfSuggestion(page, matchID)
			if index < 0 {
				return data
			}
			orig := page.Suggestions[index]
			if next == models.StatusViewed {
				inverse = append(inverse, inversePatch{key, func(d any) any {
					p, ok := d.(*models.SuggestionPage)
					if !ok {
						return d
					}
					return replaceSuggestion(p, orig)
				}})
				return updateSuggestionStatus(page, matchID, next)
			}
			inverse = append(inverse, inversePatch{key, func(d any) any {
				p, ok := d.(*models.SuggestionPage)
				if !ok {
					return d
				}
				return insertSuggestionAt(p, index, orig)
			}})
			return removeSuggestion(page, matchID)
		})
	}

	optimistic := current
	optimistic.Status = next
	for _, key := range ms.Cache.Keys(models.ClassHistory) {
		ms.Cache.Patch(key, func(data any) any {
			page, ok := data.(*models.SuggestionPage)
			if !ok {
				return data
			}
			if index := indexOfSuggestion(page, matchID); index >= 0 {
				orig := page.Suggestions[index]
				inverse = append(inverse, inversePatch{key, func(d any) any {
					p, ok := d.(*models.SuggestionPage)
					if !ok {
						return d
					}
					return replaceSuggestion(p, orig)
				}})
				return updateSuggestionStatus(page, matchID, next)
			}
			if known && next != models.StatusViewed && historyKeyAccepts(key, next) {
				inverse = append(inverse, inversePatch{key, func(d any) any {
					p, ok := d.(*models.SuggestionPage)
					if !ok {
						return d
					}
					return removeSuggestion(p, matchID)
				}})
				return prependSuggestion(page, optimistic)
			}
			return data
		})
	}
	return inverse
}

// commitSuggestion replaces the optimistic data with the server's
// authoritative payload under the same cache keys.
func (ms *MutationService) commitSuggestion(suggestion models.MatchSuggestion) {
	active := suggestion.Status == models.StatusPending || suggestion.Status == models.StatusViewed
	for _, key := range ms.Cache.Keys(models.ClassSuggestions) {
		ms.Cache.Patch(key, func(data any) any {
			page, ok := data.(*models.SuggestionPage)
			if !ok {
				return data
			}
			if active {
				return replaceSuggestion(page, suggestion)
			}
			return removeSuggestion(page, suggestion.ID)
		})
	}
	for _, key := range ms.Cache.Keys(models.ClassHistory) {
		ms.Cache.Patch(key, func(data any) any {
			page, ok := data.(*models.SuggestionPage)
			if !ok {
				return data
			}
			if containsSuggestion(page, suggestion.ID) {
				return replaceSuggestion(page, suggestion)
			}
			if !active && historyKeyAccepts(key, suggestion.Status) {
				return prependSuggestion(page, suggestion)
			}
			return data
		})
	}
}

func outcomeFor(action string, result *models.ActionResult) *ActionOutcome {
	outcome := &ActionOutcome{Suggestion: result.Suggestion, IsMutual: result.IsMutual}
	switch {
	case result.IsMutual:
		outcome.Kind = "mutual"
		outcome.Message = "It's a match! You can now start collaborating."
	case action == models.ActionLike:
		outcome.Kind = "liked"
		outcome.Message = "Liked! We'll let you know if they like you back."
	case action == models.ActionPass:
		outcome.Kind = "passed"
		outcome.Message = "Passed. This suggestion won't come back."
	default:
		outcome.Kind = "viewed"
		outcome.Message = "Marked as viewed."
	}
	return outcome
}

// findCached looks a match up via Peek, which never schedules a background
// refetch mid-mutation.
func (ms *MutationService) findCached(matchID string) (models.MatchSuggestion, bool) {
	for _, class := range []string{models.ClassSuggestions, models.ClassHistory} {
		for _, key := range ms.Cache.Keys(class) {
			entry, ok := ms.Cache.Peek(key)
			if !ok {
				continue
			}
			page, ok := entry.Data.(*models.SuggestionPage)
			if !ok {
				continue
			}
			for _, suggestion := range page.Suggestions {
				if suggestion.ID == matchID {
					return suggestion, true
				}
			}
		}
	}
	return models.MatchSuggestion{}, false
}

// historyKeyAccepts reports whether a cached history page would show a
// suggestion with the given status: first page only, and no conflicting
// status filter.
func historyKeyAccepts(key, status string) bool {
	params := cache.KeyParams(key)
	if raw, ok := params["status"]; ok {
		var filter string
		if json.Unmarshal(raw, &filter) == nil && filter != "" && filter != status {
			return false
		}
	}
	if raw, ok := params["page"]; ok {
		var page int
		if json.Unmarshal(raw, &page) == nil && page > 1 {
			return false
		}
	}
	return true
}

func containsSuggestion(page *models.SuggestionPage, matchID string) bool {
	return indexOfSuggestion(page, matchID) >= 0
}

func indexOfSuggestion(page *models.SuggestionPage, matchID string) int {
	for i, suggestion := range page.Suggestions {
		if suggestion.ID == matchID {
			return i
		}
	}
	return -1
}

type indexedSuggestion struct {
	index      int
	suggestion models.MatchSuggestion
}

func collectUserSuggestions(page *models.SuggestionPage, userID string) []indexedSuggestion {
	var out []indexedSuggestion
	for i, suggestion := range page.Suggestions {
		if suggestion.TargetUserID == userID {
			out = append(out, indexedSuggestion{index: i, suggestion: suggestion})
		}
	}
	return out
}

// The page helpers below are pure: they return fresh copies and never touch
// the input, because inverse patches alias the pre-patch values.

func removeSuggestion(page *models.SuggestionPage, matchID string) *models.SuggestionPage {
	out := &models.SuggestionPage{
		Suggestions: make([]models.MatchSuggestion, 0, len(page.Suggestions)),
		Pagination:  page.Pagination,
	}
	removed := false
	for _, suggestion := range page.Suggestions {
		if suggestion.ID == matchID {
			removed = true
			continue
		}
		out.Suggestions = append(out.Suggestions, suggestion)
	}
	if removed && out.Pagination.Total > 0 {
		out.Pagination.Total--
	}
	return out
}

// insertSuggestionAt re-inserts a removed suggestion at its original
// position. If the suggestion is already present again, e.g. an
// authoritative refetch landed mid-mutation, the page is left alone.
func insertSuggestionAt(page *models.SuggestionPage, index int, suggestion models.MatchSuggestion) *models.SuggestionPage {
	if containsSuggestion(page, suggestion.ID) {
		return page
	}
	if index < 0 {
		index = 0
	}
	if index > len(page.Suggestions) {
		index = len(page.Suggestions)
	}
	out := &models.SuggestionPage{
		Suggestions: make([]models.MatchSuggestion, 0, len(page.Suggestions)+1),
		Pagination:  page.Pagination,
	}
	out.Suggestions = append(out.Suggestions, page.Suggestions[:index]...)
	out.Suggestions = append(out.Suggestions, suggestion)
	out.Suggestions = append(out.Suggestions, page.Suggestions[index:]...)
	out.Pagination.Total++
	return out
}

func removeUserSuggestions(page *models.SuggestionPage, userID string) *models.SuggestionPage {
	out := &models.SuggestionPage{
		Suggestions: make([]models.MatchSuggestion, 0, len(page.Suggestions)),
		Pagination:  page.Pagination,
	}
	for _, suggestion := range page.Suggestions {
		if suggestion.TargetUserID == userID {
			if out.Pagination.Total > 0 {
				out.Pagination.Total--
			}
			continue
		}
		out.Suggestions = append(out.Suggestions, suggestion)
	}
	return out
}

func updateSuggestionStatus(page *models.SuggestionPage, matchID, status string) *models.SuggestionPage {
	out := &models.SuggestionPage{
		Suggestions: append([]models.MatchSuggestion(nil), page.Suggestions...),
		Pagination:  page.Pagination,
	}
	for i := range out.Suggestions {
		if out.Suggestions[i].ID == matchID {
			out.Suggestions[i].Status = status
		}
	}
	return out
}

func replaceSuggestion(page *models.SuggestionPage, suggestion models.MatchSuggestion) *models.SuggestionPage {
	out := &models.SuggestionPage{
		Suggestions: append([]models.MatchSuggestion(nil), page.Suggestions...),
		Pagination:  page.Pagination,
	}
	for i := range out.Suggestions {
		if out.Suggestions[i].ID == suggestion.ID {
			out.Suggestions[i] = suggestion
		}
	}
	return out
}

func prependSuggestion(page *models.SuggestionPage, suggestion models.MatchSuggestion) *models.SuggestionPage {
	out := &models.SuggestionPage{
		Suggestions: make([]models.MatchSuggestion, 0, len(page.Suggestions)+1),
		Pagination:  page.Pagination,
	}
	out.Suggestions = append(out.Suggestions, suggestion)
	out.Suggestions = append(out.Suggestions, page.Suggestions...)
	out.Pagination.Total++
	return out
}

func setSuggestionFeedback(page *models.SuggestionPage, matchID string, feedback *models.MatchFeedback) *models.SuggestionPage {
	out := &models.SuggestionPage{
		Suggestions: append([]models.MatchSuggestion(nil), page.Suggestions...),
		Pagination:  page.Pagination,
	}
	for i := range out.Suggestions {
		if out.Suggestions[i].ID == matchID {
			out.Suggestions[i].Feedback = feedback
		}
	}
	return out
}
