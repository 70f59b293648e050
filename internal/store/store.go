// Package store is the local-first model artifact cache. It resolves whether
// the configured model's weights exist on disk and, if not, fetches them from
// the remote source with support for resuming a partial download. A completion
// marker records the expected size so a truncated artifact is never handed to
// the loader.
package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pixeld/internal/common/fsutil"
)

const (
	weightsFile = "model.safetensors"
	partialExt  = ".partial"
	markerExt   = ".complete"
)

// fetchError signals a network or disk failure while acquiring the artifact.
// Recoverable: a later EnsureLocal resumes from the retained partial file.
type fetchError struct {
	modelID string
	err     error
}

func (e fetchError) Error() string { return "fetch " + e.modelID + ": " + e.err.Error() }
func (e fetchError) Unwrap() error { return e.err }

// IsFetch reports whether err indicates an artifact fetch failure.
func IsFetch(err error) bool {
	for err != nil {
		if _, ok := err.(fetchError); ok {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Store caches model weights under a local directory.
type Store struct {
	dir    string
	source string // printf template taking the model id
	client *http.Client
	log    zerolog.Logger
}

// New creates a Store rooted at dir. The source template produces the remote
// URL for a model id via fmt.Sprintf.
func New(dir, source string, log zerolog.Logger) (*Store, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	if err := fsutil.EnsureDir(base); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	return &Store{
		dir:    base,
		source: source,
		client: &http.Client{Timeout: 0}, // large artifacts; rely on ctx for cancellation
		log:    log,
	}, nil
}

// Dir returns the cache root.
func (s *Store) Dir() string { return s.dir }

// EnsureLocal returns the local path of the model weights, fetching them
// first if the cache does not already hold a complete copy. Idempotent:
// a complete artifact is revalidated by size only.
func (s *Store) EnsureLocal(ctx context.Context, modelID string) (string, error) {
	modelDir := filepath.Join(s.dir, fsutil.SafeName(modelID, 128))
	final := filepath.Join(modelDir, weightsFile)
	partial := final + partialExt
	marker := final + markerExt

	if size, ok := readMarker(marker); ok {
		if fi, err := os.Stat(final); err == nil && fi.Size() == size {
			return final, nil
		}
		// Marker disagrees with the file on disk; refetch.
		s.log.Warn().Str("model", modelID).Msg("cache marker stale, refetching")
		_ = os.Remove(marker)
	}

	if err := fsutil.EnsureDir(modelDir); err != nil {
		return "", fetchError{modelID: modelID, err: err}
	}

	url := fmt.Sprintf(s.source, modelID)
	size, err := s.download(ctx, url, partial)
	if err != nil {
		// Keep the partial file so the next attempt resumes.
		return "", fetchError{modelID: modelID, err: err}
	}
	if err := os.Rename(partial, final); err != nil {
		return "", fetchError{modelID: modelID, err: err}
	}
	if err := os.WriteFile(marker, []byte(strconv.FormatInt(size, 10)), 0o644); err != nil {
		return "", fetchError{modelID: modelID, err: err}
	}
	s.log.Info().Str("model", modelID).Int64("bytes", size).Msg("model cached")
	return final, nil
}

// download fetches url into dest, resuming from dest's current length when the
// server honors Range requests. Returns the verified total size.
func (s *Store) download(ctx context.Context, url, dest string) (int64, error) {
	var offset int64
	if fi, err := os.Stat(dest); err == nil {
		offset = fi.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var total int64
	switch resp.StatusCode {
	case http.StatusOK:
		// Server ignored the range (or none was sent); start over.
		offset = 0
		total = resp.ContentLength
	case http.StatusPartialContent:
		total = contentRangeTotal(resp.Header.Get("Content-Range"))
	case http.StatusRequestedRangeNotSatisfiable:
		// Nothing past our offset: the partial file already holds everything.
		return offset, nil
	default:
		return 0, fmt.Errorf("bad status: %s", resp.Status)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return 0, err
	}
	n, copyErr := io.Copy(out, resp.Body)
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return 0, copyErr
	}

	got := offset + n
	if total > 0 && got != total {
		return 0, fmt.Errorf("incomplete artifact: got %d of %d bytes", got, total)
	}
	if total <= 0 {
		// No length advertised; trust what arrived but never report zero.
		if got == 0 {
			return 0, fmt.Errorf("empty artifact from %s", url)
		}
		total = got
	}
	s.log.Debug().
		Int64("resumed_from", offset).
		Int64("bytes", n).
		Dur("dur", time.Since(start)).
		Msg("download finished")
	return total, nil
}

// readMarker returns the expected artifact size recorded in the marker file.
func readMarker(path string) (int64, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	size, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil || size <= 0 {
		return 0, false
	}
	return size, true
}

// contentRangeTotal parses the total from "bytes a-b/total"; 0 if unknown.
func contentRangeTotal(v string) int64 {
	idx := strings.LastIndex(v, "/")
	if idx < 0 {
		return 0
	}
	total, err := strconv.ParseInt(v[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return total
}
