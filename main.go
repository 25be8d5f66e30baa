package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"blog-cms/pkg/config"
	"blog-cms/pkg/handlers"
	"blog-cms/pkg/markdown"
	"blog-cms/pkg/metrics"
	"blog-cms/pkg/services"
)

type CLI struct {
	Config  string `short:"c" help:"Site configuration file (YAML or TOML)" default:"blog.yml"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Serve the blog API"`
	Rebuild RebuildCmd `cmd:"" help:"Regenerate the cache index from the content directory"`
}

// AfterApply sets up logging once flags are parsed.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	repo     *services.PostRepository
	media    *services.MediaStore
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	renderer, err := markdown.New(cfg.MarkdownEngine, cfg.MarkdownSafe)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repo := services.NewPostRepository(
		cfg.ProjectRoot,
		cfg.Resolve(cfg.ContentDir),
		services.NewCacheIndex(cfg.Resolve(cfg.CachePath)),
		renderer,
		services.WithRecorder(metrics.NewPrometheusRecorder(reg)),
	)
	return &app{
		cfg:      cfg,
		registry: reg,
		repo:     repo,
		media:    services.NewMediaStore(cfg.Resolve(cfg.MediaDir), cfg.MediaURL),
	}, nil
}

type RebuildCmd struct{}

func (r *RebuildCmd) Run(cli *CLI) error {
	a, err := newApp(cli.Config)
	if err != nil {
		return err
	}
	posts, err := a.repo.Rebuild(context.Background())
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	slog.Info("Cache index rebuilt", "posts", len(posts), "path", a.cfg.Resolve(a.cfg.CachePath))
	return nil
}

type ServeCmd struct {
	Watch bool `help:"Rebuild the cache index when content files change"`
}

func (s *ServeCmd) Run(cli *CLI) error {
	a, err := newApp(cli.Config)
	if err != nil {
		return err
	}
	if a.cfg.AdminToken == "" {
		slog.Warn("ADMIN_TOKEN is not set; admin routes will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := a.repo.Rebuild(ctx); err != nil {
		slog.Warn("Initial cache rebuild failed", "error", err)
	}

	if s.Watch {
		w, err := services.NewWatcher(a.repo, a.cfg.WatchDebounce.Std())
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Close()
		go func() {
			if err := w.Run(ctx); err != nil {
				slog.Error("Watcher stopped", "error", err)
			}
		}()
	}

	secret, err := sessionSecret(a.cfg.SessionSecret)
	if err != nil {
		return err
	}
	api := handlers.NewAPI(a.cfg, a.repo, a.media)
	router := handlers.NewRouter(api, secret, metrics.HTTPHandler(a.registry))
	router.Static(a.cfg.MediaURL, a.cfg.Resolve(a.cfg.MediaDir))

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func sessionSecret(configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	slog.Warn("SESSION_SECRET is not set; admin sessions will not survive a restart")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("blog-cms"),
		kong.Description("File-backed blog with an admin publishing API."),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
