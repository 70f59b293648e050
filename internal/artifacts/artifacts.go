// Package artifacts persists generated images and hands back retrievable
// references. Serving the files over HTTP is the router's job, not ours.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"pixeld/internal/common/fsutil"
	"pixeld/pkg/types"
)

// Store writes image bytes under a directory and derives public URLs.
type Store struct {
	dir     string
	baseURL string
	log     zerolog.Logger
	now     func() time.Time
}

// New creates the images directory if needed.
func New(dir, baseURL string, log zerolog.Logger) (*Store, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	if err := fsutil.EnsureDir(base); err != nil {
		return nil, fmt.Errorf("images dir: %w", err)
	}
	return &Store{dir: base, baseURL: baseURL, log: log, now: time.Now}, nil
}

// Dir returns the directory artifacts are written to.
func (s *Store) Dir() string { return s.dir }

// Save writes png bytes to a timestamped file named after the prompt and
// returns its reference.
func (s *Store) Save(prompt string, png []byte) (types.ArtifactRef, error) {
	ts := s.now().Format("20060102_150405")
	name := fmt.Sprintf("pixeld_%s_%s.png", ts, fsutil.SafeName(prompt, 30))
	path := filepath.Join(s.dir, name)
	// Never clobber an earlier artifact from the same second.
	for i := 1; fsutil.PathExists(path); i++ {
		name = fmt.Sprintf("pixeld_%s_%s_%d.png", ts, fsutil.SafeName(prompt, 30), i)
		path = filepath.Join(s.dir, name)
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return types.ArtifactRef{}, fmt.Errorf("save artifact: %w", err)
	}
	ref := types.ArtifactRef{
		URL:  s.baseURL + "/images/" + name,
		Path: path,
	}
	s.log.Info().Str("path", path).Int("bytes", len(png)).Msg("artifact saved")
	return ref, nil
}
