package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/simp-lee/logger"
	"gorm.io/gorm"

	"github.com/luofanlf/hdbPilot-admin/internal/backend"
	"github.com/luofanlf/hdbPilot-admin/internal/config"
	"github.com/luofanlf/hdbPilot-admin/internal/domain"
	"github.com/luofanlf/hdbPilot-admin/internal/listing"
	"github.com/luofanlf/hdbPilot-admin/internal/middleware"
	"github.com/luofanlf/hdbPilot-admin/internal/module/audit"
	"github.com/luofanlf/hdbPilot-admin/internal/module/auth"
	"github.com/luofanlf/hdbPilot-admin/internal/module/dashboard"
	"github.com/luofanlf/hdbPilot-admin/internal/module/listpage"
	"github.com/luofanlf/hdbPilot-admin/internal/module/pending"
	"github.com/luofanlf/hdbPilot-admin/internal/module/property"
	"github.com/luofanlf/hdbPilot-admin/internal/module/review"
	"github.com/luofanlf/hdbPilot-admin/internal/module/user"
	"github.com/luofanlf/hdbPilot-admin/internal/session"
	"github.com/luofanlf/hdbPilot-admin/internal/workspace"
	"github.com/luofanlf/hdbPilot-admin/web"
)

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine     *gin.Engine
	db         *gorm.DB
	logger     *logger.Logger
	cfg        *config.Config
	workspaces *workspace.Store
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler, timeout time.Duration) httpServer {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      2 * timeout,
		IdleTimeout:       120 * time.Second,
	}
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New creates and wires a fully configured App from the given Config.
//
// It sets up logging, the backend client, sessions, the optional audit
// database, every console module, middleware, template rendering and routes.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	success := false

	// 1. Setup logger.
	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	defer func() {
		if success {
			return
		}
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	for _, name := range cfg.GeneratedSecrets {
		log.Warn("no secret configured, using a random one (sessions will not survive a restart)", slog.String("setting", name))
	}
	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 reloads templates from disk for every client")
	}

	// 2. Audit database, only when the audit log is enabled.
	var db *gorm.DB
	if cfg.Audit.Enabled {
		db, err = config.SetupDatabase(&cfg.Database, log.Logger)
		if err != nil {
			return nil, fmt.Errorf("setup database: %w", err)
		}
		defer func() {
			if success {
				return
			}
			closeDB(db, log.Logger)
		}()

		if err := db.AutoMigrate(&domain.AuditEntry{}); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("audit log enabled", slog.String("driver", cfg.Database.Driver))
	}

	// 3. Backend client and its metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := backend.New(backend.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		RateLimit:  effectiveRateLimitRPS(cfg.Backend.RateLimit),
		Burst:      cfg.Backend.RateLimit.Burst,
		Registerer: registry,
		Logger:     log.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setup backend client: %w", err)
	}

	// 4. Sessions and per-session view state.
	secure := cfg.Server.Mode == gin.ReleaseMode
	workspaces := workspace.NewStore(cfg.Session.WorkspaceTTL, log.Logger)
	sessions, err := session.NewStore(session.Config{
		Secret: cfg.Session.Secret,
		MaxAge: int(cfg.Session.MaxAge / time.Second),
		Secure: secure,
	}, client, workspaces, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("setup session store: %w", err)
	}

	// 5. Manual dependency injection: backend resource → module.
	modules := buildModules(cfg, client, sessions, db, log.Logger)

	// 6. Create Gin engine with custom middleware (not gin.Default()).
	if err := validateGinMode(cfg.Server.Mode); err != nil {
		return nil, err
	}
	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()

	engine.Use(
		middleware.Recovery(log.Logger),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			TrustUpstream: false,
		}),
		middleware.Logger(log.Logger, "/health", "/metrics"),
		func(c *gin.Context) {
			c.Set(listpage.AuditEnabledKey, db != nil)
			c.Next()
		},
	)

	// 7. Determine filesystem mode and set up template renderer.
	var fsys fs.FS
	if cfg.Server.Mode == gin.DebugMode {
		fsys, err = resolveDebugWebFS()
		if err != nil {
			return nil, fmt.Errorf("resolve debug template fs: %w", err)
		}
	} else {
		fsys = web.EmbeddedFS
	}

	renderer, err := NewTemplateRenderer(fsys, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("setup template renderer: %w", err)
	}
	engine.HTMLRender = renderer

	// 8. Register all routes.
	if err := RegisterRoutes(engine, &RouteDeps{
		Modules:    modules,
		DB:         db,
		Backend:    client,
		Metrics:    registry,
		Session:    sessions.Init(),
		Mode:       cfg.Server.Mode,
		CSRFSecret: cfg.Server.CSRFSecret,
		Secure:     secure,
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	success = true
	return &App{
		engine:     engine,
		db:         db,
		logger:     log,
		cfg:        cfg,
		workspaces: workspaces,
	}, nil
}

// buildModules wires every console module to its backend resource.
func buildModules(cfg *config.Config, client *backend.Client, sessions *session.Store, db *gorm.DB, log *slog.Logger) []Module {
	var (
		hook        listing.MutationHook
		auditModule Module
	)
	if db != nil {
		recorder := audit.NewRecorder(audit.NewRepository(db), cfg.Audit.Retention, log)
		hook = recorder.Hook()
		auditModule = audit.NewModule(recorder)
	}

	opts := func(pageSize int) listpage.Options {
		return listpage.Options{
			PageSize:   pageSize,
			Timeout:    cfg.Backend.Timeout,
			OnMutation: hook,
			Logger:     log,
		}
	}

	var limit gin.HandlerFunc
	if cfg.Server.LoginRateLimit.Enabled {
		limit = middleware.NewRateLimiter(
			effectiveRateLimitRPS(cfg.Server.LoginRateLimit),
			cfg.Server.LoginRateLimit.Burst,
		).Handler()
	}
	authHandler := auth.NewHandler(auth.NewService(client, cfg.Backend.LoginPath), sessions)

	modules := []Module{
		auth.NewModule(authHandler, limit),
		dashboard.NewModule(client),
		user.NewModule(client.Users(), opts(cfg.Backend.PageSizes.Users)),
		property.NewModule(client.Properties(), opts(cfg.Backend.PageSizes.Properties)),
		pending.NewModule(client.Pending(), opts(cfg.Backend.PageSizes.Pending)),
		review.NewModule(client.Reviews(), opts(cfg.Backend.PageSizes.Reviews)),
	}
	if auditModule != nil {
		modules = append(modules, auditModule)
	}
	return modules
}

// effectiveRateLimitRPS returns 0 (unlimited) for a disabled limiter.
func effectiveRateLimitRPS(rl config.RateLimitConfig) float64 {
	if !rl.Enabled || rl.RPS <= 0 {
		return 0
	}
	return rl.RPS
}

func validateGinMode(mode string) error {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		return nil
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
}

func resolveDebugWebFS() (fs.FS, error) {
	if _, file, _, ok := runtime.Caller(0); ok {
		webDir := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "web"))
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	exePath, err := os.Executable()
	if err == nil {
		webDir := filepath.Join(filepath.Dir(exePath), "web")
		if stat, err := os.Stat(webDir); err == nil && stat.IsDir() {
			return os.DirFS(webDir), nil
		}
	}

	return nil, errors.New("debug web directory not found")
}

func closeDB(db *gorm.DB, log *slog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error("database close error", slog.Any("error", err))
		return
	}
	log.Info("database connection closed")
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// It performs graceful shutdown with a 5-second timeout, stops the workspace
// sweeper and closes the audit database.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	log := slog.Default()
	if a.logger != nil {
		log = a.logger.Logger
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine, a.cfg.Server.Timeout)

	// Listen for SIGINT / SIGTERM.
	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.workspaces != nil {
		sweepCtx, cancelSweep := context.WithCancel(ctx)
		defer cancelSweep()
		go a.workspaces.Run(sweepCtx, 0)
	}

	// Start HTTP server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		log.Info("server started",
			slog.String("addr", addr),
			slog.String("backend", strings.TrimSpace(a.cfg.Backend.BaseURL)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	if runErr == nil {
		// Graceful shutdown with 5-second deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
	}

	if a.db != nil {
		closeDB(a.db, log)
	}

	log.Info("server stopped")
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}

	return runErr
}
