// Package internal contains core application functionality
package internal

import (
	"fmt"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"storepulse/internal/config"
	"storepulse/internal/database"
	"storepulse/internal/jobs"
)

// Application wraps cartridge.Application with storepulse-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager // storepulse-specific DB manager with migration methods
	Scheduler *jobs.Scheduler
}

// Option configures optional application features.
type Option func(*appOptions)

type appOptions struct {
	staticFS fs.FS
}

// WithStaticFS serves the given filesystem (embedded production assets) under
// the configured assets prefix. Nil means assets come from disk.
func WithStaticFS(fsys fs.FS) Option {
	return func(o *appOptions) {
		o.staticFS = fsys
	}
}

// NewApp creates a new application instance with default settings
func NewApp(opts ...Option) (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg, opts...)
}

// NewAppWithRoutes creates a new application with custom route mounting function
func NewAppWithRoutes(cfg *config.Config, routeMount func(*cartridge.Server), opts ...Option) (*Application, error) {
	var options appOptions
	for _, opt := range opts {
		opt(&options)
	}

	// Create logger
	logger := cartridge.NewLogger(cfg, nil)

	// Initialize database manager (storepulse-specific with migration methods)
	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize the background job scheduler
	scheduler, err := jobs.NewScheduler(dbManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	mount := routeMount
	if options.staticFS != nil {
		mount = func(srv *cartridge.Server) {
			routeMount(srv)
			mountStaticAssets(srv, cfg, options.staticFS)
		}
	}

	// Create the cartridge application
	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    mount,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Scheduler:   scheduler,
	}, nil
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config, opts ...Option) (*Application, error) {
	return NewAppWithRoutes(cfg, MountAppRoutes, opts...)
}

// mountStaticAssets serves embedded build assets under the assets prefix with
// long-lived cache headers. Hashed filenames make the cache safe.
func mountStaticAssets(srv *cartridge.Server, cfg *config.Config, fsys fs.FS) {
	prefix := strings.TrimRight(cfg.GetAssetsPrefix(), "/")
	srv.Get(prefix+"/*", func(ctx *cartridge.Context) error {
		name := strings.TrimPrefix(ctx.Path(), prefix+"/")
		name = path.Clean(name)
		if name == "." || strings.HasPrefix(name, "..") {
			return ctx.SendStatus(fiber.StatusNotFound)
		}

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return ctx.SendStatus(fiber.StatusNotFound)
		}

		if contentType := mime.TypeByExtension(path.Ext(name)); contentType != "" {
			ctx.Set(fiber.HeaderContentType, contentType)
		}
		ctx.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
		return ctx.Send(data)
	})
}
