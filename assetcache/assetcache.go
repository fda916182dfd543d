// Package assetcache keeps the application's own static assets available
// without a network round trip: cache-first reads with an opportunistic
// background refresh, one versioned cache generation per deployment.
package assetcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"lagerapp/broadcast"
)

const dirPrefix = "assets-"

// Config describes one cache generation.
type Config struct {
	Root     string // cache root directory; generations live under it
	Version  string // generation tag; bumping it is the only upgrade path
	Upstream string // origin serving the real assets
	Client   *http.Client
}

type meta struct {
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
}

// Proxy serves same-origin GET requests cache-first and passes everything
// else through to the upstream untouched.
type Proxy struct {
	root     string
	version  string
	dir      string
	upstream *url.URL
	client   *http.Client
	pass     *httputil.ReverseProxy
	hub      *broadcast.Hub

	mu     sync.Mutex
	probed bool
	online bool
}

// New prepares the cache directory for cfg.Version. hub may be nil when no
// connectivity notifications are wanted.
func New(cfg Config, hub *broadcast.Hub) (*Proxy, error) {
	if cfg.Root == "" || cfg.Version == "" {
		return nil, fmt.Errorf("cache root and version are required")
	}
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("upstream must be an absolute URL")
	}

	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	dir := filepath.Join(cfg.Root, dirPrefix+cfg.Version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &Proxy{
		root:     cfg.Root,
		version:  cfg.Version,
		dir:      dir,
		upstream: upstream,
		client:   client,
		pass:     httputil.NewSingleHostReverseProxy(upstream),
		hub:      hub,
	}, nil
}

// Install pre-populates the current generation with the declared core asset
// list. A core asset that cannot be fetched fails the install.
func (p *Proxy) Install(ctx context.Context, core []string) error {
	for _, path := range core {
		body, contentType, err := p.fetch(ctx, path)
		if err != nil {
			return fmt.Errorf("install %s: %w", path, err)
		}
		if err := p.store(path, body, contentType); err != nil {
			return fmt.Errorf("install %s: %w", path, err)
		}
	}
	return nil
}

// Activate deletes every cache generation other than the current one. Old
// generations are removed, never migrated.
func (p *Proxy) Activate() error {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return fmt.Errorf("read cache root: %w", err)
	}
	current := dirPrefix + p.version
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) || entry.Name() == current {
			continue
		}
		if err := os.RemoveAll(filepath.Join(p.root, entry.Name())); err != nil {
			return fmt.Errorf("purge stale cache %s: %w", entry.Name(), err)
		}
		slog.Info("purged stale asset cache", slog.String("generation", entry.Name()))
	}
	return nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Non-read requests and requests for other origins pass through
	// untouched and are never cached.
	if r.Method != http.MethodGet || (r.URL.Host != "" && r.URL.Host != p.upstream.Host) {
		p.pass.ServeHTTP(w, r)
		return
	}

	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	if body, contentType, ok := p.load(path); ok {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		// Cached response already went out; refresh for next time.
		go p.refresh(path)
		return
	}

	body, contentType, err := p.fetch(r.Context(), path)
	if err != nil {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	if err := p.store(path, body, contentType); err != nil {
		slog.Warn("asset cache store failed", slog.String("path", path), slog.Any("err", err))
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// WatchConnectivity probes the upstream every interval and publishes a flush
// notification when connectivity comes back, prompting consumers to re-read
// the store. There is no pending-write queue; the flush has no other effect.
func (p *Proxy) WatchConnectivity(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Proxy) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.upstream.String(), nil)
	if err != nil {
		return
	}
	resp, err := p.client.Do(req)
	online := err == nil
	if resp != nil {
		_ = resp.Body.Close()
	}

	p.mu.Lock()
	wasProbed, wasOnline := p.probed, p.online
	p.probed, p.online = true, online
	p.mu.Unlock()

	if wasProbed && !wasOnline && online {
		slog.Info("upstream reachable again")
		if p.hub != nil {
			p.hub.Flush()
		}
	}
}

func (p *Proxy) refresh(path string) {
	body, contentType, err := p.fetch(context.Background(), path)
	if err != nil {
		// The caller already got the cached copy; nothing to do.
		return
	}
	if err := p.store(path, body, contentType); err != nil {
		slog.Warn("asset cache refresh failed", slog.String("path", path), slog.Any("err", err))
	}
}

func (p *Proxy) fetch(ctx context.Context, path string) ([]byte, string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.upstream.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return body, contentType, nil
}

func (p *Proxy) store(path string, body []byte, contentType string) error {
	name := entryName(path)
	metaBytes, err := json.Marshal(meta{Path: path, ContentType: contentType})
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(p.dir, name), body, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.dir, name+".meta"), metaBytes, 0o644)
}

func (p *Proxy) load(path string) ([]byte, string, bool) {
	name := entryName(path)
	body, err := os.ReadFile(filepath.Join(p.dir, name))
	if err != nil {
		return nil, "", false
	}
	metaBytes, err := os.ReadFile(filepath.Join(p.dir, name+".meta"))
	if err != nil {
		return nil, "", false
	}
	var m meta
	if err := json.Unmarshal(metaBytes, &m); err != nil {
		return nil, "", false
	}
	return body, m.ContentType, true
}

func entryName(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}
