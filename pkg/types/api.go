package types

// GenerateRequest represents an image generation request payload.
type GenerateRequest struct {
	// Required prompt text describing the image to generate.
	// example: a red cube on a wooden table
	Prompt string `json:"prompt" example:"a red cube on a wooden table"`
	// Optional negative prompt. If empty, the server default is used.
	// example: blurry, low quality
	NegativePrompt string `json:"negative_prompt,omitempty" example:"blurry, low quality"`
	// Output width in pixels; 0 uses the configured default.
	// example: 1024
	Width int `json:"width,omitempty" example:"1024"`
	// Output height in pixels; 0 uses the configured default.
	// example: 1024
	Height int `json:"height,omitempty" example:"1024"`
	// Number of denoising steps; 0 uses the configured default.
	// example: 50
	Steps int `json:"steps,omitempty" example:"50"`
	// Guidance scale; 0 uses the configured default.
	// example: 7.0
	GuidanceScale float64 `json:"guidance_scale,omitempty" example:"7.0"`
	// Random seed for reproducible output; omitted or negative lets the server choose.
	Seed *int64 `json:"seed,omitempty"`
}

// GenerateResponse is returned by POST /api/v1/generate on success.
type GenerateResponse struct {
	// Retrievable reference to the generated image.
	// example: http://localhost:8080/images/pixeld_20250101_120000_a_red_cube.png
	ImageURL string `json:"image_url"`
	// Server-local path of the artifact file.
	ImagePath string `json:"image_path,omitempty"`
	// Seed that produced the image.
	// example: 42
	Seed int64 `json:"seed"`
	// Generation wall time in milliseconds.
	// example: 9451
	DurationMS int64 `json:"duration_ms"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: prompt is required
	Error string `json:"error" example:"prompt is required"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	// Lifecycle state of the model (unloaded, loading, ready, failed).
	// example: ready
	State string `json:"state" example:"ready"`
	// Configured model identifier.
	// example: runwayml/stable-diffusion-v1-5
	ModelID string `json:"model_id"`
	// Device the model runs on.
	// example: cuda
	Device string `json:"device" example:"cuda"`
	// Last load error, if the model is in the failed state.
	LastError string `json:"last_error,omitempty"`
	// Requests currently executing on the accelerator.
	// example: 1
	Inflight int `json:"inflight"`
	// Requests waiting for an execution slot.
	// example: 0
	QueueLen int `json:"queue_len"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Total model loads since start.
	// example: 2
	LoadsTotal uint64 `json:"loads_total"`
	// Total generations served since start.
	// example: 120
	GenerationsTotal uint64 `json:"generations_total"`
}

// InfoResponse describes the active model configuration (GET /api/v1/info).
type InfoResponse struct {
	ModelID          string  `json:"model_id"`
	Device           string  `json:"device"`
	Precision        string  `json:"precision"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	Steps            int     `json:"steps"`
	GuidanceScale    float64 `json:"guidance_scale"`
	NegativePrompt   string  `json:"negative_prompt"`
	AttentionSlicing bool    `json:"attention_slicing"`
	VAESlicing       bool    `json:"vae_slicing"`
	CPUOffload       bool    `json:"cpu_offload"`
	QuantizedLoad    bool    `json:"quantized_load"`
}

// MemoryResponse is a point-in-time memory reading (GET /api/v1/memory).
type MemoryResponse struct {
	// Lifecycle state at snapshot time.
	// example: ready
	State string `json:"state"`
	// Accelerator memory currently allocated, in MB. Zero when unloaded.
	// example: 4096
	DeviceAllocatedMB int64 `json:"device_allocated_mb"`
	// Accelerator memory reserved by the allocator, in MB.
	// example: 5120
	DeviceReservedMB int64 `json:"device_reserved_mb"`
	// Total accelerator memory, in MB.
	// example: 8192
	DeviceTotalMB int64 `json:"device_total_mb"`
	// Host heap in use, in MB.
	// example: 180
	HostAllocMB int64 `json:"host_alloc_mb"`
	// Host memory obtained from the OS, in MB.
	// example: 512
	HostSysMB int64 `json:"host_sys_mb"`
	// Completed GC cycles.
	NumGC uint32 `json:"num_gc"`
}

// CleanupResponse acknowledges a cache release (POST /api/v1/cleanup).
type CleanupResponse struct {
	// example: cache released
	Message string `json:"message"`
	// Lifecycle state after cleanup.
	// example: ready
	State string `json:"state"`
}
