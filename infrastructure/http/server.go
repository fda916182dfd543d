package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lagerapp/assetcache"
	"lagerapp/broadcast"
	"lagerapp/exports"
	"lagerapp/infrastructure/sqlite"
)

var ShutdownTimeout = 2 * time.Second

// Server is the engine's local HTTP surface: health, the update event
// stream, export downloads and the asset cache proxy as fallback handler.
// Entity mutations are not exposed here; the presentation layer calls the
// store packages directly.
type Server struct {
	Addr   string
	ln     net.Listener
	server *http.Server
	router *chi.Mux

	DB    *sqlite.DB
	Hub   *broadcast.Hub
	Proxy *assetcache.Proxy
}

// NewServer creates a new http server. proxy may be nil when asset caching
// is disabled.
func NewServer(addr string, db *sqlite.DB, hub *broadcast.Hub, proxy *assetcache.Proxy) *Server {
	s := &Server{
		Addr:   addr,
		router: chi.NewRouter(),
		DB:     db,
		Hub:    hub,
		Proxy:  proxy,
		server: &http.Server{
			MaxHeaderBytes: 1 << 20,
		},
	}

	// Secure headers first.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	})

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)

	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Get("/events", s.EventsHandler())

	s.router.Route("/exports", func(r chi.Router) {
		r.Get("/inbound.csv", exports.InboundCSVHandler(db))
		r.Get("/inbound.pdf", exports.InboundPDFHandler(db))
		r.Get("/stock.pdf", exports.OpenStockPDFHandler(db))
		r.Get("/movements.pdf", exports.MovementsPDFHandler(db))
		r.Get("/location-labels.pdf", exports.LocationLabelsPDFHandler(db))
	})

	if proxy != nil {
		s.router.NotFound(proxy.ServeHTTP)
	}

	s.server.Handler = s.router
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	var err error
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	go s.server.Serve(s.ln)
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.ln == nil {
		return fmt.Errorf("HTTP server has not been started or is already stopped")
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %v", err)
	}
	s.ln = nil
	return nil
}
