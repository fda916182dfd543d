package assetcache

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"lagerapp/broadcast"
)

type upstream struct {
	srv  *httptest.Server
	body atomic.Value // string
	fail atomic.Bool
}

func startUpstream(t *testing.T, body string) *upstream {
	t.Helper()
	u := &upstream{}
	u.body.Store(body)
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u.fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		if r.Method == http.MethodHead {
			return
		}
		w.Header().Set("Content-Type", "text/css")
		_, _ = io.WriteString(w, u.body.Load().(string))
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func newTestProxy(t *testing.T, u *upstream, root, version string) *Proxy {
	t.Helper()
	p, err := New(Config{Root: root, Version: version, Upstream: u.srv.URL}, nil)
	if err != nil {
		t.Fatalf("new proxy: %v", err)
	}
	return p
}

func get(t *testing.T, p *Proxy, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestMissFetchesStoresAndServes(t *testing.T) {
	u := startUpstream(t, "body { margin: 0 }")
	p := newTestProxy(t, u, t.TempDir(), "v1")

	rec := get(t, p, "/styles.css")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "body { margin: 0 }" {
		t.Fatalf("unexpected body: %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/css" {
		t.Fatalf("expected upstream content type, got %q", ct)
	}

	if _, _, ok := p.load("/styles.css"); !ok {
		t.Fatalf("expected the response to be cached")
	}
}

func TestHitServesFromCacheWithoutWaitingOnUpstream(t *testing.T) {
	u := startUpstream(t, "v1-body")
	p := newTestProxy(t, u, t.TempDir(), "v1")

	get(t, p, "/styles.css")

	u.fail.Store(true)
	rec := get(t, p, "/styles.css")
	if rec.Code != http.StatusOK || rec.Body.String() != "v1-body" {
		t.Fatalf("expected cached copy while upstream is down, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestHitTriggersBackgroundRefresh(t *testing.T) {
	u := startUpstream(t, "old")
	p := newTestProxy(t, u, t.TempDir(), "v1")

	get(t, p, "/app.js")
	u.body.Store("new")

	// The hit serves the stale copy and refreshes behind the response.
	rec := get(t, p, "/app.js")
	if rec.Body.String() != "old" {
		t.Fatalf("expected the cached copy to be served, got %q", rec.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if body, _, ok := p.load("/app.js"); ok && string(body) == "new" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("background refresh never updated the cache entry")
}

func TestMissWithUpstreamDownIs502(t *testing.T) {
	u := startUpstream(t, "unused")
	u.fail.Store(true)
	p := newTestProxy(t, u, t.TempDir(), "v1")

	rec := get(t, p, "/never-cached.js")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for an uncached asset with upstream down, got %d", rec.Code)
	}
}

func TestQueryStringsAreDistinctEntries(t *testing.T) {
	u := startUpstream(t, "shared")
	p := newTestProxy(t, u, t.TempDir(), "v1")

	get(t, p, "/data?page=1")
	if _, _, ok := p.load("/data?page=1"); !ok {
		t.Fatalf("expected /data?page=1 cached")
	}
	if _, _, ok := p.load("/data?page=2"); ok {
		t.Fatalf("expected /data?page=2 to be a separate, uncached entry")
	}
}

func TestInstallPrefetchesCoreAssets(t *testing.T) {
	u := startUpstream(t, "core")
	p := newTestProxy(t, u, t.TempDir(), "v1")

	if err := p.Install(context.Background(), []string{"/", "/index.html", "/app.js"}); err != nil {
		t.Fatalf("install: %v", err)
	}
	for _, path := range []string{"/", "/index.html", "/app.js"} {
		if _, _, ok := p.load(path); !ok {
			t.Fatalf("expected %s cached after install", path)
		}
	}
}

func TestInstallFailsWhenCoreAssetUnavailable(t *testing.T) {
	u := startUpstream(t, "core")
	u.fail.Store(true)
	p := newTestProxy(t, u, t.TempDir(), "v1")

	if err := p.Install(context.Background(), []string{"/index.html"}); err == nil {
		t.Fatalf("expected install to fail when a core asset cannot be fetched")
	}
}

func TestActivatePurgesOtherGenerations(t *testing.T) {
	u := startUpstream(t, "old-gen")
	root := t.TempDir()

	old := newTestProxy(t, u, root, "v1")
	get(t, old, "/styles.css")

	u.body.Store("new-gen")
	cur := newTestProxy(t, u, root, "v2")
	if err := cur.Install(context.Background(), []string{"/styles.css"}); err != nil {
		t.Fatalf("install v2: %v", err)
	}
	if err := cur.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "assets-v1")); !os.IsNotExist(err) {
		t.Fatalf("expected v1 generation purged, stat err: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "assets-v2")); err != nil {
		t.Fatalf("current generation must survive activate: %v", err)
	}

	// After the version bump only the new generation answers.
	rec := get(t, cur, "/styles.css")
	if rec.Body.String() != "new-gen" {
		t.Fatalf("expected the new generation's copy, got %q", rec.Body.String())
	}
}

func TestNonGETPassesThrough(t *testing.T) {
	var sawPost atomic.Bool
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sawPost.Store(true)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer origin.Close()

	p, err := New(Config{Root: t.TempDir(), Version: "v1", Upstream: origin.URL}, nil)
	if err != nil {
		t.Fatalf("new proxy: %v", err)
	}

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader("{}")))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through status 204, got %d", rec.Code)
	}
	if !sawPost.Load() {
		t.Fatalf("expected the POST to reach the origin")
	}
	if _, _, ok := p.load("/api/sync"); ok {
		t.Fatalf("pass-through responses must not be cached")
	}
}

func TestConnectivityRecoveryFlushes(t *testing.T) {
	u := startUpstream(t, "x")
	hub := broadcast.NewHub()
	p, err := New(Config{Root: t.TempDir(), Version: "v1", Upstream: u.srv.URL}, hub)
	if err != nil {
		t.Fatalf("new proxy: %v", err)
	}

	ch, cancel := hub.Subscribe(broadcast.TopicAll, 4)
	defer cancel()

	ctx := context.Background()

	// First probe only establishes the baseline, no flush yet.
	p.probe(ctx)
	p.probe(ctx)
	select {
	case msg := <-ch:
		t.Fatalf("no flush expected while staying online: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}

	// Probes only see transport errors, so go fully offline.
	u.srv.CloseClientConnections()
	u.srv.Close()
	p.probe(ctx)

	restart := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer restart.Close()
	p.upstream, _ = p.upstream.Parse(restart.URL)
	p.probe(ctx)

	select {
	case msg := <-ch:
		if msg.Kind != broadcast.KindFlush {
			t.Fatalf("expected flush after recovery, got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a flush notification after connectivity recovery")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Root: "", Version: "v1", Upstream: "http://localhost"}, nil); err == nil {
		t.Fatalf("expected error for missing root")
	}
	if _, err := New(Config{Root: t.TempDir(), Version: "", Upstream: "http://localhost"}, nil); err == nil {
		t.Fatalf("expected error for missing version")
	}
	if _, err := New(Config{Root: t.TempDir(), Version: "v1", Upstream: "not-a-url"}, nil); err == nil {
		t.Fatalf("expected error for relative upstream")
	}
}
