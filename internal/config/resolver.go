package config

import (
	"fmt"
	"strings"
	"time"
)

// Device targets supported by the resolver.
const (
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

// Numeric precisions supported by the resolver.
const (
	PrecisionFP16 = "fp16"
	PrecisionFP32 = "fp32"
)

// Defaults applied by Resolve when the corresponding Config field is unset.
const (
	DefaultModelID        = "runwayml/stable-diffusion-v1-5"
	DefaultModelSource    = "https://huggingface.co/%s/resolve/main/model.safetensors"
	DefaultWidth          = 1024
	DefaultHeight         = 1024
	DefaultSteps          = 50
	DefaultGuidanceScale  = 7.0
	DefaultNegativePrompt = "blurry, low quality, distorted, deformed"
	DefaultImagesDir      = "generated_images"
	DefaultCacheDir       = "~/.cache/pixeld/models"
	DefaultBaseURL        = "http://localhost:8080"

	DefaultMaxConcurrency = 1
	DefaultMaxQueueDepth  = 16
	DefaultSlotWait       = 30 * time.Second
	DefaultGenTimeout     = 5 * time.Minute
	DefaultDrainTimeout   = 2 * time.Minute
)

// ModelConfig is the immutable, resolved configuration threaded into the
// manager and pipeline. Constructed once at process start; never mutated.
type ModelConfig struct {
	ModelID     string
	ModelSource string // printf template taking the model id
	CacheDir    string

	Device    string
	Precision string

	AttentionSlicing bool
	VAESlicing       bool
	CPUOffload       bool
	QuantizedLoad    bool

	Width          int
	Height         int
	Steps          int
	GuidanceScale  float64
	NegativePrompt string

	ImagesDir string
	BaseURL   string

	MaxConcurrency int
	MaxQueueDepth  int
	SlotWait       time.Duration
	GenTimeout     time.Duration
	DrainTimeout   time.Duration
}

// Resolve turns a raw Config into a validated ModelConfig. Pure function of
// its input: no environment reads, no state.
func Resolve(cfg Config) (ModelConfig, error) {
	mc := ModelConfig{
		ModelID:        strings.TrimSpace(cfg.ModelID),
		ModelSource:    cfg.ModelSource,
		CacheDir:       cfg.CacheDir,
		Device:         strings.ToLower(strings.TrimSpace(cfg.Device)),
		Precision:      strings.ToLower(strings.TrimSpace(cfg.Precision)),
		Width:          cfg.Width,
		Height:         cfg.Height,
		Steps:          cfg.Steps,
		GuidanceScale:  cfg.GuidanceScale,
		NegativePrompt: cfg.NegativePrompt,
		ImagesDir:      cfg.ImagesDir,
		BaseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		MaxConcurrency: cfg.MaxConcurrency,
		MaxQueueDepth:  cfg.MaxQueueDepth,
	}
	if mc.ModelID == "" {
		mc.ModelID = DefaultModelID
	}
	if mc.ModelSource == "" {
		mc.ModelSource = DefaultModelSource
	}
	if mc.CacheDir == "" {
		mc.CacheDir = DefaultCacheDir
	}
	if mc.Device == "" {
		mc.Device = DeviceCUDA
	}
	switch mc.Device {
	case DeviceCUDA, DeviceCPU:
	default:
		return ModelConfig{}, fmt.Errorf("unknown device %q (want %s or %s)", mc.Device, DeviceCUDA, DeviceCPU)
	}
	if mc.Precision == "" {
		// Half precision only makes sense on the accelerator.
		if mc.Device == DeviceCUDA {
			mc.Precision = PrecisionFP16
		} else {
			mc.Precision = PrecisionFP32
		}
	}
	switch mc.Precision {
	case PrecisionFP16, PrecisionFP32:
	default:
		return ModelConfig{}, fmt.Errorf("unknown precision %q (want %s or %s)", mc.Precision, PrecisionFP16, PrecisionFP32)
	}
	if mc.Precision == PrecisionFP16 && mc.Device == DeviceCPU {
		return ModelConfig{}, fmt.Errorf("precision %s requires device %s", PrecisionFP16, DeviceCUDA)
	}

	// Memory optimizations default on for the accelerator; CPU-only runs have
	// no VRAM to save. Explicit file settings always win.
	onCUDA := mc.Device == DeviceCUDA
	mc.AttentionSlicing = boolOr(cfg.AttentionSlicing, onCUDA)
	mc.VAESlicing = boolOr(cfg.VAESlicing, onCUDA)
	mc.CPUOffload = boolOr(cfg.CPUOffload, false)
	mc.QuantizedLoad = boolOr(cfg.QuantizedLoad, false)
	if !onCUDA && (mc.AttentionSlicing || mc.VAESlicing || mc.CPUOffload || mc.QuantizedLoad) {
		return ModelConfig{}, fmt.Errorf("memory optimizations require device %s", DeviceCUDA)
	}

	if mc.Width == 0 {
		mc.Width = DefaultWidth
	}
	if mc.Height == 0 {
		mc.Height = DefaultHeight
	}
	if mc.Width <= 0 || mc.Height <= 0 {
		return ModelConfig{}, fmt.Errorf("dimensions must be positive, got %dx%d", mc.Width, mc.Height)
	}
	if mc.Steps == 0 {
		mc.Steps = DefaultSteps
	}
	if mc.Steps < 0 {
		return ModelConfig{}, fmt.Errorf("steps must be positive, got %d", mc.Steps)
	}
	if mc.GuidanceScale == 0 {
		mc.GuidanceScale = DefaultGuidanceScale
	}
	if mc.NegativePrompt == "" {
		mc.NegativePrompt = DefaultNegativePrompt
	}
	if mc.ImagesDir == "" {
		mc.ImagesDir = DefaultImagesDir
	}
	if mc.BaseURL == "" {
		mc.BaseURL = DefaultBaseURL
	}

	if mc.MaxConcurrency <= 0 {
		mc.MaxConcurrency = DefaultMaxConcurrency
	}
	if mc.MaxQueueDepth <= 0 {
		mc.MaxQueueDepth = DefaultMaxQueueDepth
	}
	mc.SlotWait = durationOr(cfg.SlotWaitSeconds, DefaultSlotWait)
	mc.GenTimeout = durationOr(cfg.GenTimeoutSeconds, DefaultGenTimeout)
	mc.DrainTimeout = durationOr(cfg.DrainTimeoutSeconds, DefaultDrainTimeout)
	return mc, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func durationOr(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}
