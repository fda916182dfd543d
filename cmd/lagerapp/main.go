package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lagerapp/assetcache"
	"lagerapp/broadcast"
	httpserver "lagerapp/infrastructure/http"
	"lagerapp/infrastructure/sqlite"
	"lagerapp/settings"
)

func main() {
	addr := getenv("APP_ADDR", ":8080")
	dbPath := getenv("SQLITE_PATH", "lagerapp.db")

	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := sqlite.ApplyMigrations(context.Background(), db, ""); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	hub := broadcast.NewHub()

	relayURL, err := settings.RelayURL(context.Background(), db)
	if err != nil {
		log.Fatalf("read relay url: %v", err)
	}
	var relay *broadcast.Relay
	if relayURL != "" {
		relay, err = broadcast.DialRelay(context.Background(), relayURL, hub)
		if err != nil {
			// The relay is advisory only; run without it.
			slog.Warn("relay unreachable, continuing offline", slog.String("url", relayURL), slog.Any("err", err))
		}
	}

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()

	var proxy *assetcache.Proxy
	if upstream := getenv("ASSET_UPSTREAM", ""); upstream != "" {
		proxy, err = assetcache.New(assetcache.Config{
			Root:     getenv("CACHE_ROOT", "cache"),
			Version:  getenv("CACHE_VERSION", "v1"),
			Upstream: upstream,
		}, hub)
		if err != nil {
			log.Fatalf("init asset cache: %v", err)
		}
		core := splitList(getenv("CORE_ASSETS", "/,/index.html,/styles.css,/app.js,/manifest.webmanifest"))
		if err := proxy.Install(context.Background(), core); err != nil {
			log.Fatalf("install asset cache: %v", err)
		}
		if err := proxy.Activate(); err != nil {
			log.Fatalf("activate asset cache: %v", err)
		}
		go proxy.WatchConnectivity(watchCtx, 30*time.Second)
	}

	server := httpserver.NewServer(addr, db, hub, proxy)
	if err := server.Start(); err != nil {
		log.Fatalf("start server: %v", err)
	}
	log.Printf("lagerapp listening on %s", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := server.Stop(); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
	if relay != nil {
		_ = relay.Close()
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
