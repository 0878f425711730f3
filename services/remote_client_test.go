package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabmatch_sync/models"
)

func testClient(t *testing.T, handler http.HandlerFunc) *RemoteClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewRemoteClient(srv.URL, func() string { return "test-token" })
	client.RetryBase = time.Millisecond
	return client
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(models.SuggestionPage{
			Suggestions: []models.MatchSuggestion{{ID: "m1"}},
			Pagination:  models.Pagination{Page: 1, Limit: 20, Total: 1},
		})
	})

	page, err := client.ListSuggestions(context.Background(), SuggestionQuery{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Len(t, page.Suggestions, 1)
	assert.Equal(t, int64(3), calls.Load())
}

func TestGetGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int64
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.GetRizzScore(context.Background())
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, int64(3), calls.Load())
}

func TestMutationsAreNeverRetried(t *testing.T) {
	var calls atomic.Int64
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.SubmitMatchAction(context.Background(), "m1", models.ActionLike, "")
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, int64(1), calls.Load(), "a mutation must be sent exactly once")
}

func TestUnauthorizedMapsToAuthError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.ListSuggestions(context.Background(), SuggestionQuery{Page: 1, Limit: 20})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestClientErrorCarriesServerMessage(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown niche"})
	})

	_, err := client.GetLeaderboard(context.Background(), LeaderboardQuery{Niche: "bogus"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "unknown niche", validationErr.Message)
}

func TestRequestsCarryBearerToken(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]int{"unreadCount": 4})
	})

	count, err := client.GetUnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestSuggestionQueryEncodesFilters(t *testing.T) {
	var query string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		json.NewEncoder(w).Encode(models.SuggestionPage{})
	})

	_, err := client.ListSuggestions(context.Background(), SuggestionQuery{
		Page:  2,
		Limit: 10,
		Filters: models.FilterState{
			Niches:       []string{"gaming", "tech"},
			AudienceMin:  1000,
			Location:     "berlin",
			RadiusKm:     50,
			VerifiedOnly: true,
		},
	})
	require.NoError(t, err)

	parsed, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.Equal(t, []string{"gaming", "tech"}, parsed["niche"])
	assert.Equal(t, []string{"1000"}, parsed["audienceMin"])
	assert.Equal(t, []string{"berlin"}, parsed["location"])
	assert.Equal(t, []string{"50"}, parsed["radiusKm"])
	assert.Equal(t, []string{"true"}, parsed["verified"])
	assert.Equal(t, []string{"2"}, parsed["page"])
}

func TestLocationAnySendsNoLocationParams(t *testing.T) {
	var query string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		json.NewEncoder(w).Encode(models.SuggestionPage{})
	})

	_, err := client.ListSuggestions(context.Background(), SuggestionQuery{
		Page:    1,
		Limit:   20,
		Filters: models.FilterState{Location: models.LocationAny, RadiusKm: 50},
	})
	require.NoError(t, err)

	parsed, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.NotContains(t, parsed, "location")
	assert.NotContains(t, parsed, "radiusKm")
}

func TestNetworkFailureMapsToNetworkError(t *testing.T) {
	client := NewRemoteClient("http://127.0.0.1:1", func() string { return "" })
	client.RetryBase = time.Millisecond

	err := client.BlockUser(context.Background(), "u1")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}
