package store

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

// weightsServer serves a fixed payload with Range support and counts hits.
func weightsServer(t *testing.T, payload []byte) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(payload)
			return
		}
		var from int64
		if _, err := fmt.Sscanf(rng, "bytes=%d-", &from); err != nil {
			http.Error(w, "bad range", http.StatusBadRequest)
			return
		}
		if from >= int64(len(payload)) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", from, len(payload)-1, len(payload)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(payload[from:])
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestStore(t *testing.T, srvURL string) *Store {
	t.Helper()
	s, err := New(t.TempDir(), srvURL+"/%s", zerolog.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestEnsureLocalFetchesAndVerifies(t *testing.T) {
	payload := []byte(strings.Repeat("w", 4096))
	srv, _ := weightsServer(t, payload)
	s := newTestStore(t, srv.URL)

	path, err := s.EnsureLocal(context.Background(), "org/model")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if len(b) != len(payload) {
		t.Fatalf("artifact size %d want %d", len(b), len(payload))
	}
	if _, ok := readMarker(path + markerExt); !ok {
		t.Fatalf("completion marker missing")
	}
}

func TestEnsureLocalIdempotent(t *testing.T) {
	payload := []byte("weights")
	srv, hits := weightsServer(t, payload)
	s := newTestStore(t, srv.URL)

	if _, err := s.EnsureLocal(context.Background(), "m"); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	n := hits.Load()
	if _, err := s.EnsureLocal(context.Background(), "m"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if hits.Load() != n {
		t.Fatalf("complete artifact was re-fetched (%d -> %d requests)", n, hits.Load())
	}
}

func TestEnsureLocalResumesPartial(t *testing.T) {
	payload := []byte(strings.Repeat("x", 2048))
	srv, _ := weightsServer(t, payload)
	s := newTestStore(t, srv.URL)

	// Simulate a previously interrupted download.
	modelDir := filepath.Join(s.Dir(), "m")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	partial := filepath.Join(modelDir, weightsFile+partialExt)
	if err := os.WriteFile(partial, payload[:1000], 0o644); err != nil {
		t.Fatalf("seed partial: %v", err)
	}

	path, err := s.EnsureLocal(context.Background(), "m")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != string(payload) {
		t.Fatalf("resumed artifact corrupt: %d bytes", len(b))
	}
}

func TestEnsureLocalTruncatedFails(t *testing.T) {
	// Server advertises more bytes than it delivers.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("short"))
	}))
	t.Cleanup(srv.Close)
	s := newTestStore(t, srv.URL)

	_, err := s.EnsureLocal(context.Background(), "m")
	if err == nil {
		t.Fatalf("expected error for truncated artifact")
	}
	if !IsFetch(err) {
		t.Fatalf("expected fetch error, got %T: %v", err, err)
	}
}

func TestEnsureLocalServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	s := newTestStore(t, srv.URL)

	if _, err := s.EnsureLocal(context.Background(), "m"); !IsFetch(err) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestStaleMarkerTriggersRefetch(t *testing.T) {
	payload := []byte("fresh-weights")
	srv, _ := weightsServer(t, payload)
	s := newTestStore(t, srv.URL)

	modelDir := filepath.Join(s.Dir(), "m")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	final := filepath.Join(modelDir, weightsFile)
	// Marker claims a size the file does not have.
	if err := os.WriteFile(final, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(final+markerExt, []byte("9999"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	path, err := s.EnsureLocal(context.Background(), "m")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != string(payload) {
		t.Fatalf("expected refetched artifact, got %q", b)
	}
}
