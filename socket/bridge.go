package socket

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"collabmatch_sync/cache"
	"collabmatch_sync/models"

	"github.com/gorilla/websocket"
)

// UnreadRefresher is what the bridge needs from the notification service.
type UnreadRefresher interface {
	RefreshUnread(ctx context.Context) (int, error)
}

// PushEvent is one message from the realtime connection.
type PushEvent struct {
	Type           string               `json:"type"`
	Notification   *models.Notification `json:"notification,omitempty"`
	NotificationID string               `json:"notificationId,omitempty"`
}

func (e PushEvent) notificationID() string {
	if e.NotificationID != "" {
		return e.NotificationID
	}
	if e.Notification != nil {
		return e.Notification.ID
	}
	return ""
}

// Bridge keeps one push connection per authenticated session and turns
// inbound events into cache invalidations. Losing the connection is never
// fatal: the cache's periodic revalidation keeps polling, so realtime
// delivery only lowers latency.
type Bridge struct {
	URL           string
	Token         func() string
	Cache         *cache.Store
	Notifications UnreadRefresher
	Relay         *Relay // optional downstream re-broadcast

	DialTimeout   time.Duration
	ReconnectBase time.Duration
	ReconnectMax  time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	stop      chan struct{}
}

// NewBridge wires a bridge against the push endpoint.
func NewBridge(url string, token func() string, store *cache.Store, notifications UnreadRefresher) *Bridge {
	return &Bridge{
		URL:           url,
		Token:         token,
		Cache:         store,
		Notifications: notifications,
		DialTimeout:   10 * time.Second,
		ReconnectBase: time.Second,
		ReconnectMax:  30 * time.Second,
		stop:          make(chan struct{}),
	}
}

// Connect establishes the push connection. Calling it again while connected
// is a no-op, and a failed dial degrades silently: the rest of the system
// keeps working off polling.
func (b *Bridge) Connect(ctx context.Context) {
	b.mu.Lock()
	if b.connected || b.closed {
		b.mu.Unlock()
		return
	}
	b.connected = true
	b.mu.Unlock()

	conn, err := b.dial(ctx)
	if err != nil {
		log.Printf("Push connection unavailable, falling back to polling: %v", err)
		b.mu.Lock()
		b.connected = false
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close()
		return
	}
	b.conn = conn
	b.mu.Unlock()
	log.Println("Push connection established")
	go b.readLoop(conn)
}

func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if b.Token != nil {
		token := b.Token()
		if token == "" {
			return nil, errors.New("no auth token available")
		}
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: b.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, b.URL, header)
	return conn, err
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		var event PushEvent
		if err := conn.ReadJSON(&event); err != nil {
			b.mu.Lock()
			b.conn = nil
			b.connected = false
			closed := b.closed
			b.mu.Unlock()
			if closed {
				return
			}
			log.Printf("Push connection lost: %v", err)
			go b.reconnect()
			return
		}
		b.Handle(event)
	}
}

func (b *Bridge) reconnect() {
	delay := b.ReconnectBase
	for {
		select {
		case <-b.stop:
			return
		case <-time.After(delay):
		}
		b.mu.Lock()
		if b.closed || b.connected {
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()

		b.Connect(context.Background())

		b.mu.Lock()
		connected := b.connected
		b.mu.Unlock()
		if connected {
			return
		}
		delay *= 2
		if delay > b.ReconnectMax {
			delay = b.ReconnectMax
		}
	}
}

// Handle applies one push event to the cache. Events are idempotent under
// duplicate delivery: marking the same entries stale twice is harmless, and
// the unread count is always refetched from the server rather than adjusted
// locally, so a push racing a poll can never double-apply. Invalidation only
// marks stale; an optimistic patch pending settlement is never overwritten
// here.
func (b *Bridge) Handle(event PushEvent) {
	switch event.Type {
	case models.EventNotificationNew, models.EventNotificationUpdated,
		models.EventNotificationDeleted, models.EventNotificationsReadAll:
	default:
		log.Printf("Ignoring unknown push event type %q", event.Type)
		return
	}

	b.Cache.InvalidateClass(models.ClassNotifications)
	if id := event.notificationID(); id != "" {
		b.Cache.Invalidate(func(key string) bool {
			return cache.ClassOf(key) == models.ClassNotificationDetail && key == detailKey(id)
		})
	}
	b.Cache.RefreshClass(models.ClassNotifications)

	if b.Notifications != nil {
		go func() {
			if _, err := b.Notifications.RefreshUnread(context.Background()); err != nil {
				log.Printf("Unread count refetch failed: %v", err)
			}
		}()
	}

	if b.Relay != nil {
		b.Relay.Broadcast(event)
	}
}

func detailKey(id string) string {
	return cache.BuildKey(models.ClassNotificationDetail, map[string]any{"id": id})
}

// Close shuts the bridge down for good.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()
	close(b.stop)
	if conn != nil {
		conn.Close()
	}
}
