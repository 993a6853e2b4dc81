// Package server wires configuration, storage, token services and the HTTP
// and gRPC transports into a runnable application, and handles graceful
// shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/httpserver"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/ratelimit"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/storage"
	"github.com/dmitrijs2005/gophauth/internal/server/telemetry"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

const serviceName = "gophauth"

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	redis        *redis.Client
	publisher    events.Publisher
	userService  *services.UserService
	registry     *prometheus.Registry
	shutdownOTel func(context.Context) error
}

// NewApp builds every dependency described by c. Resources opened before a
// failure are released.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (app *App, err error) {
	if out == nil {
		out = os.Stdout
	}

	app = &App{
		config:    c,
		logger:    logging.New(c.LogFormat, c.LogLevel, out),
		publisher: events.Nop{},
		registry:  prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			app.close(context.Background())
			app = nil
		}
	}()

	if app.shutdownOTel, err = telemetry.Init(ctx, serviceName, c.OTLPEndpoint); err != nil {
		return app, err
	}

	if dbx.IsMemoryDSN(c.DatabaseDSN) {
		app.logger.Warn(ctx, "using in-memory storage, data is lost on restart")
	}
	db, manager, err := storage.Open(ctx, c.DatabaseDSN, true)
	if err != nil {
		return app, err
	}
	app.db = db

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(app.registry)
	if err != nil {
		return app, fmt.Errorf("metrics init error: %w", err)
	}

	opts := []services.Option{
		services.WithLogger(app.logger),
		services.WithMetrics(m),
	}

	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.logger.Warn(ctx, "redis is not reachable, login limiting fails open", "addr", c.RedisAddr, "error", err)
		}
		opts = append(opts, services.WithLimiter(ratelimit.NewRedisLimiter(app.redis, c.LoginMaxAttempts, c.LoginLockoutWindow)))
	}

	if c.NATSURL != "" {
		p, err := events.NewNATSPublisher(c.NATSURL, c.NATSSubjectPrefix)
		if err != nil {
			return app, fmt.Errorf("nats init error: %w", err)
		}
		app.publisher = p
		opts = append(opts, services.WithPublisher(p))
	}

	app.userService, err = services.NewUserService(app.db, manager, c, opts...)
	if err != nil {
		return app, fmt.Errorf("user service init error: %w", err)
	}

	return app, nil
}

func (app *App) ready(ctx context.Context) error {
	if app.db == nil {
		return nil
	}
	return app.db.PingContext(ctx)
}

// Handler returns the HTTP API handler.
func (app *App) Handler() http.Handler {
	return httpserver.Router(httpserver.RouterOptions{
		Service:        app.userService,
		Ready:          app.ready,
		Metrics:        promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}),
		AllowedOrigins: app.config.AllowedOrigins,
		CookieSecure:   app.config.CookieSecure,
		Logger:         app.logger,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpserver.NewHTTPServer(app.config.EndpointAddrHTTP, app.Handler(), app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// purgeLoop deletes expired refresh tokens every PurgeInterval. A zero
// interval disables it.
func (app *App) purgeLoop(ctx context.Context) {
	if app.config.PurgeInterval <= 0 {
		return
	}

	ticker := time.NewTicker(app.config.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.userService.PurgeExpired(ctx); err != nil {
				app.logger.Error(ctx, "purge expired refresh tokens", "error", err)
			}
		}
	}
}

// Run serves until ctx is cancelled, a signal arrives or a server fails,
// then releases resources.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.purgeLoop(ctx)
	}()

	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.close(shutdownCtx)

	app.logger.Info(shutdownCtx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	if app.publisher != nil {
		app.publisher.Close()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "redis close", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn(ctx, "db close", "error", err)
		}
	}
	if app.shutdownOTel != nil {
		if err := app.shutdownOTel(ctx); err != nil {
			app.logger.Warn(ctx, "telemetry shutdown", "error", err)
		}
	}
}
