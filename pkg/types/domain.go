package types

import "time"

// ArtifactRef points at a generated image both as a servable URL and a local path.
type ArtifactRef struct {
	// Public URL segment, e.g. http://host/images/pixeld_...png
	URL string `json:"url"`
	// Absolute path on the server filesystem.
	Path string `json:"path"`
}

// GenerateResult is the success outcome of one generation.
type GenerateResult struct {
	Artifact ArtifactRef
	Seed     int64
	Duration time.Duration
}
