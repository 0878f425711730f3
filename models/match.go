package models

import "time"

// MatchSuggestion is one ranked candidate in the suggestion feed.
type MatchSuggestion struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"userId"`
	TargetUserID       string             `json:"targetUserId"`
	TargetName         string             `json:"targetName,omitempty"`
	TargetAvatar       string             `json:"targetAvatar,omitempty"`
	CompatibilityScore float64            `json:"compatibilityScore"`
	ScoreBreakdown     map[string]float64 `json:"scoreBreakdown,omitempty"`
	Status             string             `json:"status"`
	MatchType          string             `json:"matchType"`
	Feedback           *MatchFeedback     `json:"feedback,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// MatchFeedback is a user's rating of a settled suggestion.
type MatchFeedback struct {
	Rating  int      `json:"rating"`
	Reasons []string `json:"reasons,omitempty"`
	Comment string   `json:"comment,omitempty"`
}

// CanTransition reports whether a suggestion may move from one status to
// another. passed and mutual are terminal; liked can only settle to mutual.
func CanTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusViewed || to == StatusLiked || to == StatusPassed
	case StatusViewed:
		return to == StatusLiked || to == StatusPassed
	case StatusLiked:
		return to == StatusMutual
	default:
		return false
	}
}

// Pagination describes one page of a paged listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// SuggestionPage is one page of suggestions plus its pagination envelope.
type SuggestionPage struct {
	Suggestions []MatchSuggestion `json:"suggestions"`
	Pagination  Pagination        `json:"pagination"`
}

// ActionResult is the server response to a match action.
type ActionResult struct {
	Suggestion MatchSuggestion `json:"suggestion"`
	IsMutual   bool            `json:"isMutual"`
}

// Compatibility is a pairwise score lookup result.
type Compatibility struct {
	TargetUserID string             `json:"targetUserId"`
	Score        float64            `json:"score"`
	Breakdown    map[string]float64 `json:"breakdown,omitempty"`
	Profile      ProfileSummary     `json:"profile"`
}

// ProfileSummary is the slim view of the other creator shown on a match card.
type ProfileSummary struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Niche    string `json:"niche,omitempty"`
	Platform string `json:"platform,omitempty"`
	Audience int    `json:"audience,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Verified bool   `json:"verified,omitempty"`
}
