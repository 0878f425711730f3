package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"collabmatch_sync/models"
)

// SuggestionQuery parameterizes ListSuggestions.
type SuggestionQuery struct {
	Page    int
	Limit   int
	Refresh bool // asks the server to skip its own cache
	Filters models.FilterState
}

// HistoryQuery parameterizes GetHistory. From/To are ISO dates.
type HistoryQuery struct {
	Page   int
	Limit  int
	Status string
	From   string
	To     string
	Sort   string
}

// LeaderboardQuery parameterizes GetLeaderboard.
type LeaderboardQuery struct {
	Niche     string
	Location  string
	Timeframe string
	Limit     int
}

// RemoteClient wraps the match service's HTTP API, one method per logical
// operation. Reads retry transient failures with exponential backoff;
// mutating calls are sent exactly once, because the server does not
// guarantee idempotency and a silent retry could double a side effect.
type RemoteClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      func() string

	MaxAttempts int           // per read
	RetryBase   time.Duration // first backoff step
}

// NewRemoteClient builds a client against the given origin. token supplies
// the bearer token per request; it is owned by the auth layer, not by us.
func NewRemoteClient(baseURL string, token func() string) *RemoteClient {
	return &RemoteClient{
		BaseURL:     baseURL,
		HTTPClient:  &http.Client{Timeout: 15 * time.Second},
		Token:       token,
		MaxAttempts: 3,
		RetryBase:   250 * time.Millisecond,
	}
}

// ListSuggestions fetches one page of ranked candidate matches.
func (c *RemoteClient) ListSuggestions(ctx context.Context, q SuggestionQuery) (*models.SuggestionPage, error) {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Refresh {
		v.Set("refresh", "true")
	}
	applyFilterParams(v, q.Filters)

	var page models.SuggestionPage
	if err := c.do(ctx, "listSuggestions", http.MethodGet, "/api/matches/suggestions", v, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetCompatibility fetches the pairwise score against one target user.
func (c *RemoteClient) GetCompatibility(ctx context.Context, targetUserID string, useAI bool) (*models.Compatibility, error) {
	v := url.Values{}
	if useAI {
		v.Set("useAi", "true")
	}
	var compat models.Compatibility
	if err := c.do(ctx, "getCompatibility", http.MethodGet, "/api/matches/compatibility/"+url.PathEscape(targetUserID), v, nil, &compat); err != nil {
		return nil, err
	}
	return &compat, nil
}

// GetHistory fetches one page of previously acted-upon suggestions.
func (c *RemoteClient) GetHistory(ctx context.Context, q HistoryQuery) (*models.SuggestionPage, error) {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.From != "" {
		v.Set("from", q.From)
	}
	if q.To != "" {
		v.Set("to", q.To)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	var page models.SuggestionPage
	if err := c.do(ctx, "getHistory", http.MethodGet, "/api/matches/history", v, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SubmitMatchAction performs like / pass / view on a suggestion and returns
// the updated suggestion plus whether it became mutual.
func (c *RemoteClient) SubmitMatchAction(ctx context.Context, matchID, action, feedback string) (*models.ActionResult, error) {
	body := map[string]string{"action": action}
	if feedback != "" {
		body["feedback"] = feedback
	}
	var result models.ActionResult
	if err := c.do(ctx, "submitMatchAction", http.MethodPost, "/api/matches/"+url.PathEscape(matchID)+"/action", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitFeedback attaches a 1-5 rating to a settled suggestion.
func (c *RemoteClient) SubmitFeedback(ctx context.Context, matchID string, rating int, reasons []string, comment string) (*models.MatchSuggestion, error) {
	if rating < 1 || rating > 5 {
		return nil, &ValidationError{Op: "submitFeedback", Message: "rating must be between 1 and 5"}
	}
	body := map[string]any{"rating": rating, "reasons": reasons}
	if comment != "" {
		body["comment"] = comment
	}
	var suggestion models.MatchSuggestion
	if err := c.do(ctx, "submitFeedback", http.MethodPost, "/api/matches/"+url.PathEscape(matchID)+"/feedback", nil, body, &suggestion); err != nil {
		return nil, err
	}
	return &suggestion, nil
}

// BlockUser blocks a user account outright.
func (c *RemoteClient) BlockUser(ctx context.Context, userID string) error {
	return c.do(ctx, "blockUser", http.MethodPost, "/api/users/"+url.PathEscape(userID)+"/block", nil, nil, nil)
}

// GetRizzScore fetches the caller's current score.
func (c *RemoteClient) GetRizzScore(ctx context.Context) (*models.RizzScore, error) {
	var score models.RizzScore
	if err := c.do(ctx, "getRizzScore", http.MethodGet, "/api/rizz/score", nil, nil, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// RecalculateRizzScore triggers a full recompute server-side and returns the
// fresh score.
func (c *RemoteClient) RecalculateRizzScore(ctx context.Context) (*models.RizzScore, error) {
	var score models.RizzScore
	if err := c.do(ctx, "recalculateRizzScore", http.MethodPost, "/api/rizz/recalculate", nil, nil, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// GetLeaderboard fetches a ranked creator list.
func (c *RemoteClient) GetLeaderboard(ctx context.Context, q LeaderboardQuery) (*models.Leaderboard, error) {
	v := url.Values{}
	if q.Niche != "" {
		v.Set("niche", q.Niche)
	}
	if q.Location != "" {
		v.Set("location", q.Location)
	}
	if q.Timeframe != "" {
		v.Set("timeframe", q.Timeframe)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	var board models.Leaderboard
	if err := c.do(ctx, "getLeaderboard", http.MethodGet, "/api/rizz/leaderboard", v, nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

// ListNotifications fetches one page of notifications plus the server's
// authoritative unread count.
func (c *RemoteClient) ListNotifications(ctx context.Context, page, limit int, unreadOnly bool) (*models.NotificationPage, error) {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("limit", strconv.Itoa(limit))
	if unreadOnly {
		v.Set("unread", "true")
	}
	var result models.NotificationPage
	if err := c.do(ctx, "listNotifications", http.MethodGet, "/api/notifications", v, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetNotification fetches a single notification.
func (c *RemoteClient) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	var notification models.Notification
	if err := c.do(ctx, "getNotification", http.MethodGet, "/api/notifications/"+url.PathEscape(id), nil, nil, &notification); err != nil {
		return nil, err
	}
	return &notification, nil
}

// GetUnreadCount fetches the unread badge count.
func (c *RemoteClient) GetUnreadCount(ctx context.Context) (int, error) {
	var result struct {
		UnreadCount int `json:"unreadCount"`
	}
	if err := c.do(ctx, "getUnreadCount", http.MethodGet, "/api/notifications/unread-count", nil, nil, &result); err != nil {
		return 0, err
	}
	return result.UnreadCount, nil
}

// MarkNotificationRead flips one notification to read.
func (c *RemoteClient) MarkNotificationRead(ctx context.Context, id string) (*models.Notification, error) {
	var notification models.Notification
	if err := c.do(ctx, "markNotificationRead", http.MethodPatch, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil, &notification); err != nil {
		return nil, err
	}
	return &notification, nil
}

// MarkAllNotificationsRead flips every notification to read.
func (c *RemoteClient) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, "markAllNotificationsRead", http.MethodPost, "/api/notifications/read-all", nil, nil, nil)
}

// DeleteNotification removes a notification.
func (c *RemoteClient) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, "deleteNotification", http.MethodDelete, "/api/notifications/"+url.PathEscape(id), nil, nil, nil)
}

func applyFilterParams(v url.Values, f models.FilterState) {
	for _, niche := range f.Niches {
		v.Add("niche", niche)
	}
	for _, platform := range f.Platforms {
		v.Add("platform", platform)
	}
	for _, status := range f.Statuses {
		v.Add("status", status)
	}
	if f.AudienceMin > 0 {
		v.Set("audienceMin", strconv.Itoa(f.AudienceMin))
	}
	if f.AudienceMax > 0 {
		v.Set("audienceMax", strconv.Itoa(f.AudienceMax))
	}
	if f.RizzMin > 0 {
		v.Set("rizzMin", strconv.FormatFloat(f.RizzMin, 'f', -1, 64))
	}
	if f.RizzMax > 0 {
		v.Set("rizzMax", strconv.FormatFloat(f.RizzMax, 'f', -1, 64))
	}
	if f.Location != "" && f.Location != models.LocationAny {
		v.Set("location", f.Location)
		if f.RadiusKm > 0 {
			v.Set("radiusKm", strconv.Itoa(f.RadiusKm))
		}
	}
	if f.VerifiedOnly {
		v.Set("verified", "true")
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
}

// do issues one logical request. GETs are retried up to MaxAttempts on
// retryable failures with jittered exponential backoff; everything else is
// sent once.
func (c *RemoteClient) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = c.MaxAttempts
		if attempts < 1 {
			attempts = 1
		}
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			delay := c.RetryBase << (i - 1)
			delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
			select {
			case <-ctx.Done():
				return &NetworkError{Op: op, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}
		err := c.roundTrip(ctx, op, method, endpoint, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
	}
	return lastErr
}

func (c *RemoteClient) roundTrip(ctx context.Context, op, method, endpoint string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != nil {
		if token := c.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{Op: op}
	case resp.StatusCode >= 500:
		return &ServerError{Op: op, Status: resp.StatusCode, Message: readAPIMessage(resp.Body)}
	case resp.StatusCode >= 400:
		return &ValidationError{Op: op, Status: resp.StatusCode, Message: readAPIMessage(resp.Body)}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

// readAPIMessage pulls the user-facing message out of an error payload.
func readAPIMessage(r io.Reader) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return ""
	}
	if envelope.Error != "" {
		return envelope.Error
	}
	return envelope.Message
}
