package socket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabmatch_sync/cache"
	"collabmatch_sync/models"
)

type fakeRefresher struct {
	calls atomic.Int64
}

func (f *fakeRefresher) RefreshUnread(context.Context) (int, error) {
	f.calls.Add(1)
	return 0, nil
}

func seedNotificationCaches(store *cache.Store) (listKey, detail string) {
	listKey = cache.BuildKey(models.ClassNotifications, map[string]any{"page": 1, "limit": 20})
	detail = cache.BuildKey(models.ClassNotificationDetail, map[string]any{"id": "n1"})
	store.Set(listKey, &models.NotificationPage{UnreadCount: 1}, time.Now())
	store.Set(detail, &models.Notification{ID: "n1"}, time.Now())
	return listKey, detail
}

func TestHandleInvalidatesNotificationCaches(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	listKey, detail := seedNotificationCaches(store)
	refresher := &fakeRefresher{}
	bridge := NewBridge("", nil, store, refresher)

	bridge.Handle(PushEvent{Type: models.EventNotificationNew, NotificationID: "n1"})

	entry, _ := store.Get(listKey)
	assert.True(t, entry.Stale)
	entry, _ = store.Get(detail)
	assert.True(t, entry.Stale)

	require.Eventually(t, func() bool {
		return refresher.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestHandleIsIdempotentUnderDuplicateDelivery(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	listKey, _ := seedNotificationCaches(store)
	bridge := NewBridge("", nil, store, &fakeRefresher{})

	event := PushEvent{Type: models.EventNotificationUpdated, Notification: &models.Notification{ID: "n1"}}
	bridge.Handle(event)
	bridge.Handle(event)

	entry, ok := store.Get(listKey)
	require.True(t, ok)
	assert.True(t, entry.Stale)
	assert.NotNil(t, entry.Data, "invalidation must never drop cached data")
}

func TestHandleIgnoresUnknownEventTypes(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	listKey, _ := seedNotificationCaches(store)
	refresher := &fakeRefresher{}
	bridge := NewBridge("", nil, store, refresher)

	bridge.Handle(PushEvent{Type: "profile:updated"})

	entry, _ := store.Get(listKey)
	assert.False(t, entry.Stale)
	assert.Equal(t, int64(0), refresher.calls.Load())
}

func TestConnectDegradesSilentlyWhenDialFails(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	bridge := NewBridge("ws://127.0.0.1:1", func() string { return "tok" }, store, &fakeRefresher{})
	defer bridge.Close()

	bridge.Connect(context.Background())

	bridge.mu.Lock()
	connected := bridge.connected
	bridge.mu.Unlock()
	assert.False(t, connected)
}

func TestConnectRequiresToken(t *testing.T) {
	bridge := NewBridge("ws://example.invalid", func() string { return "" }, cache.NewStore(), nil)
	defer bridge.Close()

	_, err := bridge.dial(context.Background())
	require.Error(t, err)
}

func TestBridgeAppliesEventsFromWireConnection(t *testing.T) {
	store := cache.NewStore()
	defer store.Close()
	listKey, _ := seedNotificationCaches(store)
	refresher := &fakeRefresher{}

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		assert.NoError(t, conn.WriteJSON(PushEvent{Type: models.EventNotificationNew, Notification: &models.Notification{ID: "n1"}}))
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	bridge := NewBridge(url, func() string { return "tok" }, store, refresher)
	defer bridge.Close()

	bridge.Connect(context.Background())
	bridge.mu.Lock()
	connected := bridge.connected
	bridge.mu.Unlock()
	require.True(t, connected)

	// A second Connect while connected is a no-op.
	bridge.Connect(context.Background())

	require.Eventually(t, func() bool {
		entry, ok := store.Get(listKey)
		return ok && entry.Stale && refresher.calls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
