package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pixeld/internal/artifacts"
	"pixeld/internal/config"
	"pixeld/internal/httpapi"
	"pixeld/internal/manager"
	"pixeld/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pixeld:", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	addr        string
	configPath  string
	modelID     string
	device      string
	cacheDir    string
	imagesDir   string
	baseURL     string
	logLevel    string
	corsOrigins string
	maxBody     int64
}

func newRootCmd() *cobra.Command {
	var fl rootFlags
	cmd := &cobra.Command{
		Use:           "pixeld",
		Short:         "Image generation daemon wrapping a local diffusion model",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, fl)
		},
	}
	f := cmd.Flags()
	// Flags with environment variable defaults
	f.StringVar(&fl.addr, "addr", envOr("PIXELD_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	f.StringVar(&fl.configPath, "config", envOr("PIXELD_CONFIG", ""), "Path to a yaml/json/toml config file")
	f.StringVar(&fl.modelID, "model", envOr("PIXELD_MODEL", ""), "Model identifier, e.g. runwayml/stable-diffusion-v1-5")
	f.StringVar(&fl.device, "device", envOr("PIXELD_DEVICE", ""), "Compute device: cuda or cpu")
	f.StringVar(&fl.cacheDir, "cache-dir", envOr("PIXELD_CACHE_DIR", ""), "Directory for downloaded model weights")
	f.StringVar(&fl.imagesDir, "images-dir", envOr("PIXELD_IMAGES_DIR", ""), "Directory for generated images")
	f.StringVar(&fl.baseURL, "base-url", envOr("PIXELD_BASE_URL", ""), "Public base URL used in image references")
	f.StringVar(&fl.logLevel, "log-level", envOr("PIXELD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	f.StringVar(&fl.corsOrigins, "cors-origins", envOr("PIXELD_CORS_ORIGINS", ""), "Comma-separated allowed CORS origins (empty disables CORS)")
	f.Int64Var(&fl.maxBody, "max-body-bytes", 0, "Maximum JSON request body size (0 keeps the default)")
	return cmd
}

func run(cmd *cobra.Command, fl rootFlags) error {
	logger, err := buildLogger(fl.logLevel)
	if err != nil {
		return err
	}

	var cfg config.Config
	if fl.configPath != "" {
		cfg, err = config.Load(fl.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	// Flags override the file when set on the command line.
	overlay := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	overlay("model", func() { cfg.ModelID = fl.modelID })
	overlay("device", func() { cfg.Device = fl.device })
	overlay("cache-dir", func() { cfg.CacheDir = fl.cacheDir })
	overlay("images-dir", func() { cfg.ImagesDir = fl.imagesDir })
	overlay("base-url", func() { cfg.BaseURL = fl.baseURL })
	addr := fl.addr
	if !cmd.Flags().Changed("addr") && cfg.Addr != "" {
		addr = cfg.Addr
	}

	mc, err := config.Resolve(cfg)
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}

	component := func(name string) zerolog.Logger {
		return logger.With().Str("component", name).Logger()
	}
	weights, err := store.New(mc.CacheDir, mc.ModelSource, component("store"))
	if err != nil {
		return fmt.Errorf("weights store: %w", err)
	}
	images, err := artifacts.New(mc.ImagesDir, mc.BaseURL, component("artifacts"))
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Model:     mc,
		Weights:   weights,
		Artifacts: images,
		Logger:    component("manager"),
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetLogger(component("http"))
	httpapi.SetBaseContext(baseCtx)
	if fl.maxBody > 0 {
		httpapi.SetMaxBodyBytes(fl.maxBody)
	}
	if origins := splitCSV(fl.corsOrigins); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			[]string{http.MethodGet, http.MethodPost, http.MethodOptions},
			[]string{"Content-Type"})
	}

	mux := httpapi.NewMux(mgr, httpapi.MuxOptions{ImagesDir: images.Dir()})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("model", mc.ModelID).Str("device", mc.Device).Msg("pixeld listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := mgr.Unload(); err != nil {
		logger.Warn().Err(err).Msg("model unload on shutdown")
	}
	return nil
}

func buildLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", level, err)
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
