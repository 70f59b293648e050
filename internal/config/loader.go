package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds raw runtime parameters for the service as read from a file.
// Zero values mean "unspecified"; Resolve applies defaults.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	ModelID     string `json:"model_id" yaml:"model_id" toml:"model_id"`
	ModelSource string `json:"model_source" yaml:"model_source" toml:"model_source"`
	CacheDir    string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`

	Device    string `json:"device" yaml:"device" toml:"device"`
	Precision string `json:"precision" yaml:"precision" toml:"precision"`

	AttentionSlicing *bool `json:"attention_slicing" yaml:"attention_slicing" toml:"attention_slicing"`
	VAESlicing       *bool `json:"vae_slicing" yaml:"vae_slicing" toml:"vae_slicing"`
	CPUOffload       *bool `json:"cpu_offload" yaml:"cpu_offload" toml:"cpu_offload"`
	QuantizedLoad    *bool `json:"quantized_load" yaml:"quantized_load" toml:"quantized_load"`

	Width          int     `json:"width" yaml:"width" toml:"width"`
	Height         int     `json:"height" yaml:"height" toml:"height"`
	Steps          int     `json:"steps" yaml:"steps" toml:"steps"`
	GuidanceScale  float64 `json:"guidance_scale" yaml:"guidance_scale" toml:"guidance_scale"`
	NegativePrompt string  `json:"negative_prompt" yaml:"negative_prompt" toml:"negative_prompt"`

	ImagesDir string `json:"images_dir" yaml:"images_dir" toml:"images_dir"`
	BaseURL   string `json:"base_url" yaml:"base_url" toml:"base_url"`

	MaxConcurrency      int `json:"max_concurrency" yaml:"max_concurrency" toml:"max_concurrency"`
	MaxQueueDepth       int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	SlotWaitSeconds     int `json:"slot_wait_seconds" yaml:"slot_wait_seconds" toml:"slot_wait_seconds"`
	GenTimeoutSeconds   int `json:"gen_timeout_seconds" yaml:"gen_timeout_seconds" toml:"gen_timeout_seconds"`
	DrainTimeoutSeconds int `json:"drain_timeout_seconds" yaml:"drain_timeout_seconds" toml:"drain_timeout_seconds"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
