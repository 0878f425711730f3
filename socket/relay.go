package socket

import (
	"log"
	"net/http"
	"sync"

	socketio "github.com/googollee/go-socket.io"
)

// NotificationsRoom is the room front-end clients join for push events.
const NotificationsRoom = "notifications"

// Relay re-broadcasts bridge events to front-end socket.io clients. The
// bridge consumes the upstream push connection; the relay fans events out
// downstream.
type Relay struct {
	server *socketio.Server

	// OnFirstSubscriber runs once, when the first client subscribes. The
	// push bridge hooks this to connect lazily.
	OnFirstSubscriber func()
	once              sync.Once
}

// NewRelay initializes the socket.io server and its event handlers.
func NewRelay() *Relay {
	server := socketio.NewServer(nil)
	relay := &Relay{server: server}

	server.OnConnect("/", func(s socketio.Conn) error {
		log.Println("Socket connected:", s.ID())
		return nil
	})

	server.OnEvent("/", "subscribe", func(s socketio.Conn, room string) {
		if room == "" {
			room = NotificationsRoom
		}
		s.Join(room)
		log.Printf("Socket %s joined room %s", s.ID(), room)
		if relay.OnFirstSubscriber != nil {
			relay.once.Do(relay.OnFirstSubscriber)
		}
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Println("Socket disconnected:", s.ID(), reason)
	})

	return relay
}

// Broadcast pushes one bridge event to every subscribed client.
func (r *Relay) Broadcast(event PushEvent) {
	r.server.BroadcastToRoom("/", NotificationsRoom, event.Type, event)
}

// Serve runs the socket.io loop; it blocks until Close.
func (r *Relay) Serve() error { return r.server.Serve() }

// Close stops the socket.io server.
func (r *Relay) Close() error { return r.server.Close() }

// Handler mounts the socket.io endpoint on an HTTP router.
func (r *Relay) Handler() http.Handler { return r.server }
