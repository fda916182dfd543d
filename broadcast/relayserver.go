package broadcast

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// RelayServer redistributes update messages between connected engines. It
// holds no state beyond the open connections: every message read from one
// client is written to all others, best-effort, and losses are silent.
type RelayServer struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
}

func NewRelayServer() *RelayServer {
	return &RelayServer{
		upgrader: websocket.Upgrader{
			// Engines connect from arbitrary local origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (s *RelayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("relay upgrade failed", slog.Any("err", err))
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	slog.Info("relay client connected", slog.String("remote", conn.RemoteAddr().String()))

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			slog.Info("relay client disconnected", slog.String("remote", conn.RemoteAddr().String()))
			return
		}
		if msg.Kind != KindUpdate {
			continue
		}
		s.fanOut(conn, msg)
	}
}

func (s *RelayServer) fanOut(from *websocket.Conn, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if conn == from {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			slog.Warn("relay fan-out failed", slog.String("remote", conn.RemoteAddr().String()), slog.Any("err", err))
		}
	}
}

// ClientCount reports the number of connected engines.
func (s *RelayServer) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
