package manager

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"pixeld/pkg/types"
)

// Request parameter bounds. Dimensions follow the UNet's stride requirement.
const (
	minDimension  = 64
	maxDimension  = 2048
	dimensionStep = 8
	maxSteps      = 500
	maxGuidance   = 30.0
)

// Generate validates the request, admits it through the execution-slot guard,
// ensures the model is loaded, runs the generation capability, and persists
// the artifact. Out-of-memory during execution fails only this request; the
// model stays ready.
func (m *Manager) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResult, error) {
	job, err := m.buildJob(req)
	if err != nil {
		generationsByOutcome.WithLabelValues("invalid").Inc()
		return types.GenerateResult{}, err
	}

	release, err := m.beginGeneration(ctx)
	if err != nil {
		if IsTooBusy(err) {
			generationsByOutcome.WithLabelValues("overloaded").Inc()
		}
		return types.GenerateResult{}, err
	}
	defer release()

	handle, err := m.acquire(ctx)
	if err != nil {
		generationsByOutcome.WithLabelValues("load_error").Inc()
		return types.GenerateResult{}, err
	}

	start := time.Now()
	gctx := ctx
	if m.cfg.GenTimeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, m.cfg.GenTimeout)
		defer cancel()
	}
	m.log.Info().Str("prompt", truncate(job.Prompt, 80)).Int("steps", job.Steps).Msg("generation started")

	png, err := handle.Generate(gctx, job)
	if err != nil {
		switch {
		case errors.Is(err, ErrDeviceOOM):
			// Recovered locally: abandon this request, keep the model resident.
			oomTotal.Inc()
			generationsByOutcome.WithLabelValues("oom").Inc()
			m.log.Warn().Err(err).Msg("generation hit device OOM")
			m.publisher.Publish(Event{Name: "generation_oom", ModelID: m.cfg.ModelID})
			return types.GenerateResult{}, ErrResourceExhausted(err)
		case gctx.Err() != nil && ctx.Err() == nil:
			generationsByOutcome.WithLabelValues("timeout").Inc()
			return types.GenerateResult{}, ErrTimeout("generation")
		default:
			generationsByOutcome.WithLabelValues("error").Inc()
			return types.GenerateResult{}, err
		}
	}

	ref, err := m.artifacts.Save(req.Prompt, png)
	if err != nil {
		generationsByOutcome.WithLabelValues("error").Inc()
		return types.GenerateResult{}, err
	}

	dur := time.Since(start)
	m.generationsTotal.Add(1)
	generationsByOutcome.WithLabelValues("ok").Inc()
	generationDuration.Observe(dur.Seconds())
	m.log.Info().Str("artifact", ref.URL).Dur("dur", dur).Int64("seed", job.Seed).Msg("generation finished")
	return types.GenerateResult{Artifact: ref, Seed: job.Seed, Duration: dur}, nil
}

// buildJob validates the request against configured bounds and fills absent
// parameters from the model configuration. Runs before any resource is
// acquired.
func (m *Manager) buildJob(req types.GenerateRequest) (Job, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Job{}, ErrInvalidRequest("prompt is required")
	}
	job := Job{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          req.Steps,
		GuidanceScale:  req.GuidanceScale,
	}
	if job.NegativePrompt == "" {
		job.NegativePrompt = m.cfg.NegativePrompt
	}
	if job.Width == 0 {
		job.Width = m.cfg.Width
	}
	if job.Height == 0 {
		job.Height = m.cfg.Height
	}
	for _, d := range [...]struct {
		name string
		v    int
	}{{"width", job.Width}, {"height", job.Height}} {
		if d.v < minDimension || d.v > maxDimension {
			return Job{}, ErrInvalidRequest(fmt.Sprintf("%s must be between %d and %d", d.name, minDimension, maxDimension))
		}
		if d.v%dimensionStep != 0 {
			return Job{}, ErrInvalidRequest(fmt.Sprintf("%s must be a multiple of %d", d.name, dimensionStep))
		}
	}
	if job.Steps == 0 {
		job.Steps = m.cfg.Steps
	}
	if job.Steps < 1 || job.Steps > maxSteps {
		return Job{}, ErrInvalidRequest(fmt.Sprintf("steps must be between 1 and %d", maxSteps))
	}
	if job.GuidanceScale == 0 {
		job.GuidanceScale = m.cfg.GuidanceScale
	}
	if job.GuidanceScale < 0 || job.GuidanceScale > maxGuidance {
		return Job{}, ErrInvalidRequest(fmt.Sprintf("guidance_scale must be between 0 and %g", maxGuidance))
	}
	if req.Seed != nil && *req.Seed >= 0 {
		job.Seed = *req.Seed
	} else {
		job.Seed = rand.Int63()
	}
	return job, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
