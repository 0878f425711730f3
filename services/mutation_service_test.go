package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabmatch_sync/cache"
	"collabmatch_sync/models"
)

type fakeActionClient struct {
	actFn      func(ctx context.Context, matchID, action, feedback string) (*models.ActionResult, error)
	feedbackFn func(ctx context.Context, matchID string, rating int, reasons []string, comment string) (*models.MatchSuggestion, error)
	blockFn    func(ctx context.Context, userID string) error
}

func (f *fakeActionClient) SubmitMatchAction(ctx context.Context, matchID, action, feedback string) (*models.ActionResult, error) {
	return f.actFn(ctx, matchID, action, feedback)
}

func (f *fakeActionClient) SubmitFeedback(ctx context.Context, matchID string, rating int, reasons []string, comment string) (*models.MatchSuggestion, error) {
	return f.feedbackFn(ctx, matchID, rating, reasons, comment)
}

func (f *fakeActionClient) BlockUser(ctx context.Context, userID string) error {
	return f.blockFn(ctx, userID)
}

func suggestion(id, targetUserID, status string) models.MatchSuggestion {
	return models.MatchSuggestion{
		ID:           id,
		UserID:       "me",
		TargetUserID: targetUserID,
		TargetName:   "Creator " + targetUserID,
		Status:       status,
	}
}

func seedFeed(store *cache.Store) (suggestionsKey, historyKey string) {
	suggestionsKey = cache.BuildKey(models.ClassSuggestions, map[string]any{"page": 1, "limit": 20})
	historyKey = cache.BuildKey(models.ClassHistory, map[string]any{"page": 1, "limit": 20})
	store.Set(suggestionsKey, &models.SuggestionPage{
		Suggestions: []models.MatchSuggestion{
			suggestion("m1", "u1", models.StatusPending),
			suggestion("m2", "u2", models.StatusViewed),
		},
		Pagination: models.Pagination{Page: 1, Limit: 20, Total: 2},
	}, time.Now())
	store.Set(historyKey, &models.SuggestionPage{
		Suggestions: []models.MatchSuggestion{
			suggestion("m9", "u9", models.StatusPassed),
		},
		Pagination: models.Pagination{Page: 1, Limit: 20, Total: 1},
	}, time.Now())
	return suggestionsKey, historyKey
}

func marshalEntry(t *testing.T, store *cache.Store, key string) []byte {
	t.Helper()
	entry, ok := store.Get(key)
	require.True(t, ok)
	raw, err := json.Marshal(entry.Data)
	require.NoError(t, err)
	return raw
}

func TestLikeRemovesCardAndUpsertsHistory(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	suggestionsKey, historyKey := seedFeed(store)

	liked := suggestion("m1", "u1", models.StatusLiked)
	client := &fakeActionClient{
		actFn: func(_ context.Context, matchID, action, _ string) (*models.ActionResult, error) {
			assert.Equal(t, "m1", matchID)
			assert.Equal(t, models.ActionLike, action)
			return &models.ActionResult{Suggestion: liked}, nil
		},
	}
	ms := NewMutationService(store, client)

	outcome, err := ms.Act(context.Background(), "m1", models.ActionLike, "")
	require.NoError(t, err)
	assert.Equal(t, "liked", outcome.Kind)
	assert.False(t, outcome.IsMutual)

	entry, _ := store.Get(suggestionsKey)
	page := entry.Data.(*models.SuggestionPage)
	require.Len(t, page.Suggestions, 1)
	assert.Equal(t, "m2", page.Suggestions[0].ID)
	assert.Equal(t, 1, page.Pagination.Total)

	entry, _ = store.Get(historyKey)
	history := entry.Data.(*models.SuggestionPage)
	require.Len(t, history.Suggestions, 2)
	assert.Equal(t, "m1", history.Suggestions[0].ID)
	assert.Equal(t, models.StatusLiked, history.Suggestions[0].Status)
}

func TestViewUpdatesStatusInPlace(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	suggestionsKey, _ := seedFeed(store)

	viewed := suggestion("m1", "u1", models.StatusViewed)
	client := &fakeActionClient{
		actFn: func(context.Context, string, string, string) (*models.ActionResult, error) {
			return &models.ActionResult{Suggestion: viewed}, nil
		},
	}
	ms := NewMutationService(store, client)

	_, err := ms.Act(context.Background(), "m1", models.ActionView, "")
	require.NoError(t, err)

	entry, _ := store.Get(suggestionsKey)
	page := entry.Data.(*models.SuggestionPage)
	require.Len(t, page.Suggestions, 2)
	assert.Equal(t, models.StatusViewed, page.Suggestions[0].Status)
}

func TestFailedActionRestoresExactState(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	suggestionsKey, historyKey := seedFeed(store)

	before := map[string][]byte{
		suggestionsKey: marshalEntry(t, store, suggestionsKey),
		historyKey:     marshalEntry(t, store, historyKey),
	}

	patched := false
	client := &fakeActionClient{
		actFn: func(context.Context, string, string, string) (*models.ActionResult, error) {
			// The optimistic edit must be visible before the request settles.
			entry, _ := store.Get(suggestionsKey)
			page := entry.Data.(*models.SuggestionPage)
			patched = len(page.Suggestions) == 1
			return nil, &NetworkError{Op: "submitMatchAction", Err: errors.New("connection reset")}
		},
	}
	ms := NewMutationService(store, client)

	_, err := ms.Act(context.Background(), "m1", models.ActionLike, "")
	require.Error(t, err)
	assert.True(t, patched)

	for key, want := range before {
		assert.Equal(t, string(want), string(marshalEntry(t, store, key)))
	}
}

func TestFailedActionRollbackLeavesOverlappingCommitIntact(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	suggestionsKey, historyKey := seedFeed(store)

	// Two mutations on different matches may legally overlap: the
	// single-flight slot is per (match, action class). Rolling back the
	// failed like on m1 must not resurrect m2, whose pass committed while
	// the like was still in flight.
	passed := suggestion("m2", "u2", models.StatusPassed)
	likeStarted := make(chan struct{})
	likeRelease := make(chan struct{})
	client := &fakeActionClient{
		actFn: func(_ context.Context, matchID, _, _ string) (*models.ActionResult, error) {
			if matchID == "m1" {
				close(likeStarted)
				<-likeRelease
				return nil, &NetworkError{Op: "submitMatchAction", Err: errors.New("connection reset")}
			}
			return &models.ActionResult{Suggestion: passed}, nil
		},
	}
	ms := NewMutationService(store, client)

	likeDone := make(chan error, 1)
	go func() {
		_, err := ms.Act(context.Background(), "m1", models.ActionLike, "")
		likeDone <- err
	}()
	<-likeStarted

	_, err := ms.Act(context.Background(), "m2", models.ActionPass, "")
	require.NoError(t, err)

	close(likeRelease)
	require.Error(t, <-likeDone)

	entry, _ := store.Get(suggestionsKey)
	page := entry.Data.(*models.SuggestionPage)
	require.Len(t, page.Suggestions, 1)
	assert.Equal(t, "m1", page.Suggestions[0].ID)
	assert.Equal(t, models.StatusPending, page.Suggestions[0].Status)
	assert.Equal(t, 1, page.Pagination.Total)

	entry, _ = store.Get(historyKey)
	history := entry.Data.(*models.SuggestionPage)
	statuses := map[string]string{}
	for _, s := range history.Suggestions {
		statuses[s.ID] = s.Status
	}
	assert.Equal(t, models.StatusPassed, statuses["m2"])
	assert.NotContains(t, statuses, "m1")
}

func TestRollbackSkipsCardRestoredByRefetch(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	suggestionsKey, _ := seedFeed(store)

	// An authoritative refetch that lands mid-mutation already shows m1;
	// the failed like's rollback must not duplicate it or roll the page
	// back to pre-refetch contents.
	fresh := &models.SuggestionPage{
		Suggestions: []models.MatchSuggestion{suggestion("m1", "u1", models.StatusPending)},
		Pagination:  models.Pagination{Page: 1, Limit: 20, Total: 1},
	}
	client := &fakeActionClient{
		actFn: func(context.Context, string, string, string) (*models.ActionResult, error) {
			store.Set(suggestionsKey, fresh, time.Now())
			return nil, &ServerError{Op: "submitMatchAction", Status: 500, Message: "boom"}
		},
	}
	ms := NewMutationService(store, client)

	_, err := ms.Act(context.Background(), "m1", models.ActionLike, "")
	require.Error(t, err)

	entry, _ := store.Get(suggestionsKey)
	page := entry.Data.(*models.SuggestionPage)
	require.Len(t, page.Suggestions, 1)
	assert.Equal(t, "m1", page.Suggestions[0].ID)
	assert.Equal(t, 1, page.Pagination.Total)
}

func TestMutualMatchInvalidatesStanding(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	seedFeed(store)
	leaderboardKey := cache.BuildKey(models.ClassLeaderboard, map[string]any{"niche": "gaming"})
	store.Set(leaderboardKey, &models.Leaderboard{Niche: "gaming"}, time.Now())
	store.Set(models.ClassRizzScore, &models.RizzScore{}, time.Now())

	mutual := suggestion("m1", "u1", models.StatusMutual)
	client := &fakeActionClient{
		actFn: func(context.Context, string, string, string) (*models.ActionResult, error) {
			return &models.ActionResult{Suggestion: mutual, IsMutual: true}, nil
		},
	}
	ms := NewMutationService(store, client)

	outcome, err := ms.Act(context.Background(), "m1", models.ActionLike, "")
	require.NoError(t, err)
	assert.Equal(t, "mutual", outcome.Kind)
	assert.True(t, outcome.IsMutual)

	entry, _ := store.Get(leaderboardKey)
	assert.True(t, entry.Stale)
	entry, _ = store.Get(models.ClassRizzScore)
	assert.True(t, entry.Stale)
}

func TestSecondActionOnSameMatchRejectedWhileInFlight(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	seedFeed(store)

	started := make(chan struct{})
	release := make(chan struct{})
	client := &fakeActionClient{
		actFn: func(context.Context, string, string, string) (*models.ActionResult, error) {
			close(started)
			<-release
			return &models.ActionResult{Suggestion: suggestion("m1", "u1", models.StatusLiked)}, nil
		},
	}
	ms := NewMutationService(store, client)

	done := make(chan error, 1)
	go func() {
		_, err := ms.Act(context.Background(), "m1", models.ActionLike, "")
		done <- err
	}()
	<-started

	_, err := ms.Act(context.Background(), "m1", models.ActionPass, "")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	close(release)
	require.NoError(t, <-done)
}

func TestInvalidTransitionRejectedWithoutRequest(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	suggestionsKey := cache.BuildKey(models.ClassSuggestions, map[string]any{"page": 1, "limit": 20})
	store.Set(suggestionsKey, &models.SuggestionPage{
		Suggestions: []models.MatchSuggestion{suggestion("m1", "u1", models.StatusPassed)},
		Pagination:  models.Pagination{Page: 1, Limit: 20, Total: 1},
	}, time.Now())

	client := &fakeActionClient{
		actFn: func(context.Context, string, string, string) (*models.ActionResult, error) {
			t.Fatal("client must not be called for an invalid transition")
			return nil, nil
		},
	}
	ms := NewMutationService(store, client)

	_, err := ms.Act(context.Background(), "m1", models.ActionLike, "")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)

	// The slot must be released after the rejection.
	_, err = ms.Act(context.Background(), "unknown", "bogus", "")
	require.ErrorAs(t, err, &validation)
}

func TestBlockPurgesUserFromEveryCachedPage(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	page1 := cache.BuildKey(models.ClassSuggestions, map[string]any{"page": 1, "limit": 20})
	page2 := cache.BuildKey(models.ClassSuggestions, map[string]any{"page": 2, "limit": 20})
	historyKey := cache.BuildKey(models.ClassHistory, map[string]any{"page": 1, "limit": 20})
	compatKey := cache.BuildKey(models.ClassCompatibility, map[string]any{"targetUserId": "u1"})

	store.Set(page1, &models.SuggestionPage{
		Suggestions: []models.MatchSuggestion{suggestion("m1", "u1", models.StatusPending), suggestion("m2", "u2", models.StatusPending)},
		Pagination:  models.Pagination{Page: 1, Limit: 20, Total: 3},
	}, time.Now())
	store.Set(page2, &models.SuggestionPage{
		Suggestions: []models.MatchSuggestion{suggestion("m3", "u1", models.StatusPending)},
		Pagination:  models.Pagination{Page: 2, Limit: 20, Total: 3},
	}, time.Now())
	store.Set(historyKey, &models.SuggestionPage{
		Suggestions: []models.MatchSuggestion{suggestion("m4", "u1", models.StatusLiked)},
		Pagination:  models.Pagination{Page: 1, Limit: 20, Total: 1},
	}, time.Now())
	store.Set(compatKey, &models.Compatibility{TargetUserID: "u1", Score: 0.9}, time.Now())

	client := &fakeActionClient{
		blockFn: func(_ context.Context, userID string) error {
			assert.Equal(t, "u1", userID)
			return nil
		},
	}
	ms := NewMutationService(store, client)

	require.NoError(t, ms.Block(context.Background(), "u1"))

	for _, key := range []string{page1, page2, historyKey} {
		entry, _ := store.Get(key)
		for _, s := range entry.Data.(*models.SuggestionPage).Suggestions {
			assert.NotEqual(t, "u1", s.TargetUserID, "key %s still shows blocked user", key)
		}
	}
	entry, _ := store.Get(compatKey)
	assert.True(t, entry.Stale)
}

func TestBlockFailureRestoresEveryPage(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	suggestionsKey, historyKey := seedFeed(store)
	before := map[string][]byte{
		suggestionsKey: marshalEntry(t, store, suggestionsKey),
		historyKey:     marshalEntry(t, store, historyKey),
	}

	client := &fakeActionClient{
		blockFn: func(context.Context, string) error {
			return &ServerError{Op: "blockUser", Status: 502, Message: "upstream"}
		},
	}
	ms := NewMutationService(store, client)

	require.Error(t, ms.Block(context.Background(), "u1"))
	for key, want := range before {
		assert.Equal(t, string(want), string(marshalEntry(t, store, key)))
	}
}

func TestFeedbackRejectsOutOfRangeRating(t *testing.T) {
	ms := NewMutationService(cache.NewStore(), &fakeActionClient{})
	defer ms.Cache.Close()

	_, err := ms.Feedback(context.Background(), "m1", 0, nil, "")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	_, err = ms.Feedback(context.Background(), "m1", 6, nil, "")
	require.ErrorAs(t, err, &validation)
}

func TestFeedbackPatchesHistoryAndCommitsServerCopy(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	historyKey := cache.BuildKey(models.ClassHistory, map[string]any{"page": 1, "limit": 20})
	store.Set(historyKey, &models.SuggestionPage{
		Suggestions: []models.MatchSuggestion{suggestion("m1", "u1", models.StatusMutual)},
		Pagination:  models.Pagination{Page: 1, Limit: 20, Total: 1},
	}, time.Now())

	withFeedback := suggestion("m1", "u1", models.StatusMutual)
	withFeedback.Feedback = &models.MatchFeedback{Rating: 4, Comment: "great collab"}
	client := &fakeActionClient{
		feedbackFn: func(_ context.Context, matchID string, rating int, _ []string, comment string) (*models.MatchSuggestion, error) {
			assert.Equal(t, "m1", matchID)
			assert.Equal(t, 4, rating)
			assert.Equal(t, "great collab", comment)
			return &withFeedback, nil
		},
	}
	ms := NewMutationService(store, client)

	updated, err := ms.Feedback(context.Background(), "m1", 4, nil, "great collab")
	require.NoError(t, err)
	require.NotNil(t, updated.Feedback)

	entry, _ := store.Get(historyKey)
	page := entry.Data.(*models.SuggestionPage)
	require.NotNil(t, page.Suggestions[0].Feedback)
	assert.Equal(t, 4, page.Suggestions[0].Feedback.Rating)
}

func TestHistoryKeyAccepts(t *testing.T) {
	firstPage := cache.BuildKey(models.ClassHistory, map[string]any{"page": 1, "limit": 20})
	secondPage := cache.BuildKey(models.ClassHistory, map[string]any{"page": 2, "limit": 20})
	likedOnly := cache.BuildKey(models.ClassHistory, map[string]any{"page": 1, "status": models.StatusLiked})

	assert.True(t, historyKeyAccepts(firstPage, models.StatusLiked))
	assert.False(t, historyKeyAccepts(secondPage, models.StatusLiked))
	assert.True(t, historyKeyAccepts(likedOnly, models.StatusLiked))
	assert.False(t, historyKeyAccepts(likedOnly, models.StatusPassed))
}
