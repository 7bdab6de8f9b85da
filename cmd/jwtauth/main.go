package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-jwt-auth"
	"github.com/goliatone/go-jwt-auth/activitymap"
	"github.com/goliatone/go-jwt-auth/fiberauth"
	"github.com/goliatone/go-jwt-auth/metrics"
	"github.com/goliatone/go-jwt-auth/redisstore"
	"github.com/goliatone/go-jwt-auth/repository"
	"github.com/goliatone/go-print"
	"github.com/joeshaw/envdecode"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type serverConfig struct {
	Addr string `env:"HTTP_ADDR,default=:8572" json:"addr"`
	DSN  string `env:"DATABASE_DSN,default=file:jwtauth.db?cache=shared" json:"-"`
	// SessionBackend selects where session token lists live: sql or redis.
	SessionBackend string `env:"SESSION_BACKEND,default=sql" json:"session_backend"`
}

type App struct {
	server   serverConfig
	auth     auth.Config
	logger   auth.Logger
	db       *bun.DB
	repo     *repository.Manager
	sessions auth.SessionTokenRepository
	closers  []func() error
	service  *auth.Service
	srv      *fiber.App
}

func main() {
	lgr := stdLogger{prefix: "app"}
	ctx := context.Background()

	app := &App{logger: lgr}
	if err := app.loadConfig(); err != nil {
		log.Fatal(err)
	}

	fmt.Println("============")
	fmt.Println(print.MaybePrettyJSON(map[string]any{
		"server": app.server,
		"auth":   app.auth,
	}))
	fmt.Println("============")

	if err := WithPersistence(ctx, app); err != nil {
		log.Fatal(err)
	}
	defer app.close()

	if err := WithSessions(ctx, app); err != nil {
		log.Fatal(err)
	}

	if err := WithHTTPServer(app); err != nil {
		log.Fatal(err)
	}

	go func() {
		if err := app.srv.Listen(app.server.Addr); err != nil {
			lgr.Error("server stopped: %s", err)
		}
	}()

	WaitExitSignal()

	if err := app.srv.ShutdownWithTimeout(5 * time.Second); err != nil {
		lgr.Error("shutdown: %s", err)
	}
}

func (a *App) loadConfig() error {
	if err := envdecode.Decode(&a.server); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("decode server config: %w", err)
	}

	cfg, err := auth.LoadConfig()
	if err != nil {
		return err
	}
	a.auth = cfg
	return nil
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.server.DSN)
	if err != nil {
		return err
	}

	app.db = bun.NewDB(sqldb, sqlitedialect.New())
	app.closers = append(app.closers, app.db.Close)

	app.repo = repository.NewRepositoryManager(app.db)
	app.repo.MustValidate()

	return app.repo.CreateSchema(ctx)
}

func WithSessions(ctx context.Context, app *App) error {
	switch app.server.SessionBackend {
	case "", "sql":
		app.sessions = app.repo.Sessions()
	case "redis":
		store, err := redisstore.NewFromEnv(ctx)
		if err != nil {
			return err
		}
		app.sessions = store
		app.closers = append(app.closers, store.Close)
	default:
		return fmt.Errorf("unknown session backend %q", app.server.SessionBackend)
	}
	return nil
}

func WithHTTPServer(app *App) error {
	registry := prometheus.NewRegistry()

	svc, err := auth.NewService(app.auth, app.repo.Users(), app.sessions,
		auth.WithServiceLogger(stdLogger{prefix: "auth"}),
		auth.WithServiceMailer(auth.NewLogMailer(stdLogger{prefix: "mailer"}, app.auth)),
		auth.WithServiceMetrics(metrics.NewCollector(registry)),
		auth.WithServiceActivitySink(activitymap.LogSink(stdLogger{prefix: "activity"})),
	)
	if err != nil {
		return err
	}
	app.service = svc

	app.srv = fiber.New(fiber.Config{
		AppName:           "jwtauth",
		EnablePrintRoutes: true,
	})

	ctrl := fiberauth.NewController(svc)
	ctrl.Logger = stdLogger{prefix: "http"}
	ctrl.Metrics = metrics.Handler(registry)
	ctrl.RegisterRoutes(app.srv)

	protected := fiberauth.Protected(svc.Gate, ctrl.Logger)
	app.srv.Get("/me", protected, ProfileShow)

	return nil
}

func ProfileShow(c *fiber.Ctx) error {
	identity, ok := fiberauth.CurrentIdentity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{})
	}
	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":    identity.ID(),
			"email": identity.Email(),
		},
	})
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("close: %s", err)
		}
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}

type stdLogger struct {
	prefix string
}

func (l stdLogger) Debug(format string, args ...any) { l.log("DBG", format, args...) }
func (l stdLogger) Info(format string, args ...any)  { l.log("INF", format, args...) }
func (l stdLogger) Warn(format string, args ...any)  { l.log("WRN", format, args...) }
func (l stdLogger) Error(format string, args ...any) { l.log("ERR", format, args...) }

func (l stdLogger) log(level, format string, args ...any) {
	log.Printf("[%s] %s "+format, append([]any{level, l.prefix}, args...)...)
}
