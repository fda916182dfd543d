// relaysrv is the optional update relay: engines connect over websocket and
// every update one of them announces is fanned out to all the others.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lagerapp/broadcast"
)

func main() {
	addr := getenv("RELAY_ADDR", ":9090")

	relay := broadcast.NewRelayServer()

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/ws", relay.ServeHTTP)

	log.Printf("relaysrv listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("relaysrv: %v", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
