package models

import "time"

// Notification is a read-mostly entity; only the Read flag mutates locally.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	MatchID   string    `json:"matchId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationPage is one page of notifications plus the authoritative
// unread count the server reported with it.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Pagination    Pagination     `json:"pagination"`
	UnreadCount   int            `json:"unreadCount"`
}
