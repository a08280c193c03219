package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pairpicker-bot/internal/bot"
	"github.com/Proton-105/pairpicker-bot/internal/bot/keyboard"
	"github.com/Proton-105/pairpicker-bot/internal/dialogue"
	apperrors "github.com/Proton-105/pairpicker-bot/internal/errors"
	"github.com/Proton-105/pairpicker-bot/internal/health"
	"github.com/Proton-105/pairpicker-bot/internal/i18n"
	"github.com/Proton-105/pairpicker-bot/internal/idempotency"
	"github.com/Proton-105/pairpicker-bot/internal/lifecycle"
	"github.com/Proton-105/pairpicker-bot/internal/middleware"
	"github.com/Proton-105/pairpicker-bot/internal/ratelimit"
	"github.com/Proton-105/pairpicker-bot/internal/state"
	"github.com/Proton-105/pairpicker-bot/pkg/config"
	"github.com/Proton-105/pairpicker-bot/pkg/graceful"
	"github.com/Proton-105/pairpicker-bot/pkg/logger"
	"github.com/Proton-105/pairpicker-bot/pkg/metrics"
	appredis "github.com/Proton-105/pairpicker-bot/pkg/redis"
)

const (
	sentryFlushTimeout   = 2 * time.Second
	redisConnectTimeout  = 5 * time.Second
	limiterCleanEvery    = time.Minute
	idempotencySweepTime = time.Minute
)

func main() {
	if err := run(); err != nil {
		slog.Error("pair picker bot stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: sentryEnvironment(cfg),
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(sentryFlushTimeout)
	}

	log, level, err := logger.New(cfg.Logger, cfg.Sentry.Enabled)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	config.Watch(v, log, func(next *config.Config) {
		lvl, err := logger.ParseLevel(next.Logger.Level)
		if err != nil {
			return
		}
		level.Set(lvl)
	})

	log.Info("starting pair picker bot",
		slog.String("env", cfg.AppEnv),
		slog.String("mode", cfg.Bot.Mode),
		slog.String("state_backend", cfg.State.Backend),
	)

	shutdown := lifecycle.NewShutdown(log)
	checker := health.NewChecker(log)
	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
		rdb, err = appredis.New(connectCtx, cfg.Redis)
		cancel()
		if err != nil {
			return err
		}

		checker.AddCheck("redis", health.NewRedisChecker(rdb))
		shutdown.Register(lifecycle.PhaseResources, "redis", func(context.Context) error {
			return rdb.Close()
		})
	}

	store, locker := newStateStore(cfg.State, rdb, log)

	catalog, err := loadCatalog(cfg.Dialogue)
	if err != nil {
		return fmt.Errorf("load message catalogs: %w", err)
	}
	log.Info("message catalogs loaded",
		slog.Any("languages", catalog.Languages()),
		slog.String("default", catalog.DefaultLang()),
	)

	tb, err := bot.NewTelebot(cfg.Bot, log)
	if err != nil {
		return err
	}
	checker.AddCheck("telegram", health.NewTelegramChecker(tb))

	sender := bot.NewSender(tb, keyboard.NewBuilder(log), log, apperrors.NewCircuitBreaker())

	dispatcher := dialogue.NewDispatcher(store, sender, log,
		dialogue.WithMenu(dialogue.Menu{
			Symbols:     cfg.Dialogue.Symbols,
			Intervals:   cfg.Dialogue.Intervals,
			SubmitLabel: cfg.Dialogue.SubmitLabel,
		}),
		dialogue.WithCatalog(catalog),
		dialogue.WithRestart(cfg.Dialogue.AllowRestart),
		dialogue.WithUnhandledHint(cfg.Dialogue.UnhandledHint),
		dialogue.WithLocker(locker),
	)

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	updateMiddlewares, err := newUpdateMiddlewares(workersCtx, cfg, rdb, errHandler, log)
	if err != nil {
		return err
	}

	b := bot.New(tb, dispatcher, log, bot.Options{
		ErrHandler:     errHandler,
		HandlerTimeout: cfg.Bot.HandlerTimeout,
		Middlewares:    updateMiddlewares,
	})

	go state.NewCleaner(store, locker, log, cfg.State.IdleTTL, cfg.State.CleanupInterval).Run(workersCtx)
	go metrics.NewStateCollector(store, log, cfg.State.CollectInterval).Run(workersCtx)

	probes := lifecycle.NewProbes(log, checker, shutdown)
	server := graceful.NewServer(log, &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newHTTPHandler(checker, probes, log),
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.Server.ShutdownTimeout)
	if err := server.Listen(); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe(workersCtx)
	}()
	go b.Start()

	shutdown.Register(lifecycle.PhaseIntake, "telegram", b.Stop)
	shutdown.Register(lifecycle.PhaseBackground, "workers", func(context.Context) error {
		stopWorkers()
		return nil
	})
	shutdown.Register(lifecycle.PhaseResources, "http", server.Shutdown)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("http server failed", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("pair picker bot stopped")
	return nil
}

func newStateStore(cfg config.StateConfig, rdb *goredis.Client, log *slog.Logger) (state.InspectableStorage, state.Locker) {
	var store state.InspectableStorage = state.NewMemoryStorage()
	if cfg.Backend == "redis" && rdb != nil {
		store = state.NewRedisStorage(rdb, log, cfg.TTL)
	}

	var locker state.Locker = state.NewSequencer()
	if cfg.Lock == "redis" && rdb != nil {
		locker = state.NewRedisLocker(rdb, log, cfg.LockTTL, 0)
	}

	return store, locker
}

func loadCatalog(cfg config.DialogueConfig) (*i18n.Manager, error) {
	if cfg.LocalesDir != "" {
		return i18n.LoadFromDir(cfg.LocalesDir, cfg.DefaultLanguage)
	}
	return i18n.Load(cfg.DefaultLanguage)
}

func newUpdateMiddlewares(ctx context.Context, cfg *config.Config, rdb *goredis.Client, errHandler *apperrors.Handler, log *slog.Logger) ([]telebot.MiddlewareFunc, error) {
	var out []telebot.MiddlewareFunc

	if cfg.Idempotency.Enabled {
		var store idempotency.Store
		if rdb != nil {
			store = idempotency.NewRedisStore(rdb, log)
		} else {
			mem := idempotency.NewMemoryStore()
			go idempotency.NewCleaner(mem, log, idempotencySweepTime).Run(ctx)
			store = mem
		}
		out = append(out, middleware.Idempotency(idempotency.NewManager(store, log), cfg.Idempotency.TTL, log))
	}

	if cfg.RateLimit.Enabled {
		rules, err := ratelimit.NewRules(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("rate limit rules: %w", err)
		}

		memory := ratelimit.NewMemoryLimiter()
		go ratelimit.NewCleaner(memory, log, limiterCleanEvery, rules.PerConversation().Window).Run(ctx)

		var limiter ratelimit.Limiter = memory
		if cfg.RateLimit.Backend == "redis" && rdb != nil {
			limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb, log), memory, log)
		}

		out = append(out, middleware.NewRateLimitMiddleware(limiter, rules, errHandler, log).Handle)
	}

	return out, nil
}

func newHTTPHandler(checker *health.Checker, probes *lifecycle.Probes, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/health", checker.Handler())
	mux.Handle("/livez", lifecycle.Handler(probes.Liveness))
	mux.Handle("/readyz", lifecycle.Handler(probes.Readiness))

	return logger.Middleware(middleware.HTTPLogging(log)(mux))
}

func sentryEnvironment(cfg *config.Config) string {
	if cfg.Sentry.Environment != "" {
		return cfg.Sentry.Environment
	}
	return cfg.AppEnv
}
