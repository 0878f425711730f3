package models

// Suggestion statuses
const (
	StatusPending = "pending"
	StatusViewed  = "viewed"
	StatusLiked   = "liked"
	StatusPassed  = "passed"
	StatusMutual  = "mutual"
)

// Match actions
const (
	ActionLike = "like"
	ActionPass = "pass"
	ActionView = "view"
)

// Query classes. Every cache key starts with one of these; staleness windows
// and invalidation blast radius are decided per class.
const (
	ClassSuggestions        = "suggestions"
	ClassHistory            = "history"
	ClassCompatibility      = "compatibility"
	ClassLeaderboard        = "leaderboard"
	ClassRizzScore          = "rizzScore"
	ClassNotifications      = "notifications"
	ClassNotificationDetail = "notificationDetail"
	ClassUnreadCount        = "unreadCount"
)

// Push event kinds delivered over the realtime connection
const (
	EventNotificationNew      = "notification:new"
	EventNotificationUpdated  = "notification:updated"
	EventNotificationDeleted  = "notification:deleted"
	EventNotificationsReadAll = "notifications:read_all"
)
