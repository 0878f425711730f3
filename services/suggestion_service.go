package services

import (
	"context"

	"collabmatch_sync/cache"
	"collabmatch_sync/models"
)

// SuggestionAPI is the slice of the remote client the read path needs.
type SuggestionAPI interface {
	ListSuggestions(ctx context.Context, q SuggestionQuery) (*models.SuggestionPage, error)
	GetHistory(ctx context.Context, q HistoryQuery) (*models.SuggestionPage, error)
	GetCompatibility(ctx context.Context, targetUserID string, useAI bool) (*models.Compatibility, error)
}

// SuggestionService is the read path for the match feed. Every query goes
// through the cache store, which serves fresh data directly, serves stale
// data while revalidating in the background, and fetches on a miss.
type SuggestionService struct {
	Cache   *cache.Store
	Client  SuggestionAPI
	Filters *FilterService
}

// List returns one page of suggestions under the current filters. refresh
// bypasses both our cache and the server's, superseding any in-flight fetch
// for the same key.
func (ss *SuggestionService) List(ctx context.Context, page, limit int, refresh bool) (cache.Entry, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	key := ss.Filters.SuggestionsKey(page, limit)
	q := SuggestionQuery{Page: page, Limit: limit, Filters: ss.Filters.State()}
	ss.Cache.RegisterFetcher(key, func(ctx context.Context) (any, error) {
		return ss.Client.ListSuggestions(ctx, q)
	})

	if refresh {
		token := ss.Cache.ForceFetch(key)
		refreshQuery := q
		refreshQuery.Refresh = true
		result, err := ss.Client.ListSuggestions(ctx, refreshQuery)
		if ctx.Err() != nil {
			ss.Cache.CancelFetch(key, token)
			return cache.Entry{}, ctx.Err()
		}
		ss.Cache.CompleteFetch(key, token, result, err)
	}
	return ss.Cache.Fetch(ctx, key, false)
}

// History returns one page of previously acted-upon suggestions.
func (ss *SuggestionService) History(ctx context.Context, q HistoryQuery) (cache.Entry, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	key := HistoryKey(q)
	query := q
	ss.Cache.RegisterFetcher(key, func(ctx context.Context) (any, error) {
		return ss.Client.GetHistory(ctx, query)
	})
	return ss.Cache.Fetch(ctx, key, false)
}

// Compatibility returns the pairwise score against one target user.
func (ss *SuggestionService) Compatibility(ctx context.Context, targetUserID string, useAI bool) (cache.Entry, error) {
	params := map[string]any{"targetUserId": targetUserID}
	if useAI {
		params["useAi"] = true
	}
	key := cache.BuildKey(models.ClassCompatibility, params)
	ss.Cache.RegisterFetcher(key, func(ctx context.Context) (any, error) {
		return ss.Client.GetCompatibility(ctx, targetUserID, useAI)
	})
	return ss.Cache.Fetch(ctx, key, false)
}

// HistoryKey derives the cache key for one history page.
func HistoryKey(q HistoryQuery) string {
	params := map[string]any{"page": q.Page, "limit": q.Limit}
	if q.Status != "" {
		params["status"] = q.Status
	}
	if q.From != "" {
		params["from"] = q.From
	}
	if q.To != "" {
		params["to"] = q.To
	}
	if q.Sort != "" {
		params["sort"] = q.Sort
	}
	return cache.BuildKey(models.ClassHistory, params)
}
