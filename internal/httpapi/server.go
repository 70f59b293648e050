package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pixeld/internal/manager"
	"pixeld/internal/store"
	"pixeld/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResult, error)
	Health() types.HealthResponse
	Info() types.InfoResponse
	MemorySnapshot() types.MemoryResponse
	ReleaseCache() types.CleanupResponse
	Unload() error
	Ready() bool
}

// MuxOptions carries the handler wiring that is not part of the Service.
type MuxOptions struct {
	// ImagesDir, when non-empty, is served read-only under /images/.
	ImagesDir string
}

// NewMux builds the HTTP handler tree.
func NewMux(svc Service, opts MuxOptions) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/generate", handleGenerate(svc))
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Health())
		})
		r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Info())
		})
		r.Get("/memory", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.MemorySnapshot())
		})
		r.Post("/cleanup", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.ReleaseCache())
		})
		r.Post("/unload", handleUnload(svc))
	})

	if opts.ImagesDir != "" {
		dir := filepath.Clean(opts.ImagesDir)
		fs := http.StripPrefix("/images/", http.FileServer(http.Dir(dir)))
		r.Get("/images/*", func(w http.ResponseWriter, r *http.Request) {
			fs.ServeHTTP(w, r)
		})
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// handleGenerate godoc
// @Summary      Generate an image
// @Description  Runs one diffusion generation. The first request triggers the model load.
// @Accept       json
// @Produce      json
// @Param        request body types.GenerateRequest true "generation parameters"
// @Success      200 {object} types.GenerateResponse
// @Failure      400 {object} types.ErrorResponse
// @Failure      429 {object} types.ErrorResponse
// @Failure      503 {object} types.ErrorResponse
// @Router       /api/v1/generate [post]
func handleGenerate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// A too-large body also lands here; keep the response uniform.
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		start := time.Now()
		if zlog != nil {
			z := zlog.Info().Str("path", r.URL.Path)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("generate start")
		}

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		res, err := svc.Generate(ctx, req)
		if err != nil {
			// Client disconnect or shutdown: nothing useful to write.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := writeServiceError(w, err)
			logRequestEnd(r, status, time.Since(start), err)
			return
		}

		writeJSON(w, http.StatusOK, types.GenerateResponse{
			ImageURL:   res.Artifact.URL,
			ImagePath:  res.Artifact.Path,
			Seed:       res.Seed,
			DurationMS: int64(res.Duration / time.Millisecond),
		})
		logRequestEnd(r, http.StatusOK, time.Since(start), nil)
	}
}

// handleUnload godoc
// @Summary      Unload the model
// @Description  Drains in-flight work, then frees device memory. Also clears a failed load.
// @Produce      json
// @Success      200 {object} types.CleanupResponse
// @Failure      429 {object} types.ErrorResponse
// @Router       /api/v1/unload [post]
func handleUnload(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Unload(); err != nil {
			if manager.IsTooBusy(err) {
				IncrementBackpressure("unload")
				writeJSONError(w, http.StatusTooManyRequests, err.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.CleanupResponse{
			Message: "model unloaded",
			State:   svc.Health().State,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("failed to encode response")
	}
}

// writeServiceError maps generation errors to HTTP statuses and reports the
// status it wrote.
func writeServiceError(w http.ResponseWriter, err error) int {
	var status int
	switch {
	case manager.IsInvalidRequest(err):
		status = http.StatusBadRequest
	case manager.IsTooBusy(err):
		IncrementBackpressure("slots")
		status = http.StatusTooManyRequests
	case manager.IsResourceExhausted(err):
		// Transient per-request condition: tell the client when to retry.
		w.Header().Set("Retry-After", retryAfterSeconds)
		status = http.StatusServiceUnavailable
	case manager.IsLoadFailed(err), store.IsFetch(err):
		status = http.StatusServiceUnavailable
	case manager.IsTimeout(err):
		status = http.StatusGatewayTimeout
	default:
		if he, ok := err.(HTTPError); ok {
			status = he.StatusCode()
		} else {
			status = http.StatusInternalServerError
		}
	}
	writeJSONError(w, status, err.Error())
	return status
}

func logRequestEnd(r *http.Request, status int, dur time.Duration, err error) {
	if zlog == nil {
		return
	}
	z := zlog.Info().Int("status", status).Dur("dur", dur)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg("generate end")
}
