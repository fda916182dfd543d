package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Relay is the optional external transport: a websocket connection to a
// relay server shared by other engine instances. It is symmetric (local
// updates go out, remote updates come in) and advisory only; there are no
// retries or acknowledgments, and every transport error is swallowed after
// a log line, because the entity store stays authoritative.
type Relay struct {
	mu   sync.Mutex
	conn *websocket.Conn
	hub  *Hub
}

// DialRelay connects to the relay at url, attaches the relay to the hub and
// starts forwarding inbound updates to local subscribers.
func DialRelay(ctx context.Context, url string, hub *Hub) (*Relay, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	r := &Relay{conn: conn, hub: hub}
	hub.AttachRelay(r)
	go r.readLoop()
	slog.Info("relay connected", slog.String("url", url))
	return r, nil
}

func (r *Relay) readLoop() {
	for {
		var msg Message
		if err := r.conn.ReadJSON(&msg); err != nil {
			slog.Warn("relay closed", slog.Any("err", err))
			return
		}
		if msg.Kind != KindUpdate {
			continue
		}
		// Delivered locally only; re-sending would echo the update back
		// to the relay.
		r.hub.deliver(msg)
	}
}

func (r *Relay) send(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conn.WriteJSON(msg); err != nil {
		slog.Warn("relay send failed", slog.String("topic", string(msg.Topic)), slog.Any("err", err))
	}
}

// Close closes the websocket connection.
func (r *Relay) Close() error {
	return r.conn.Close()
}
