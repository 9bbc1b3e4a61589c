package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"closetvote/internal/config"
	"closetvote/internal/db"
	"closetvote/internal/kafka"
	"closetvote/internal/middleware"
	"closetvote/internal/ratelimit"
	"closetvote/internal/repository"
	"closetvote/internal/repository/memory"
	"closetvote/internal/router"
	"closetvote/internal/services"
)

// stores is what one persistence backend provides.
type stores interface {
	services.ItemStore
	services.VoteStore
	services.TallyStore
	services.WardrobeStore
	middleware.UserFinder
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Development() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// openStores connects to Postgres, or keeps everything in process when the
// database url is "memory" (development only).
func openStores(cfg *config.Config) (stores, func(context.Context) error, error) {
	if strings.EqualFold(cfg.Database.URL, "memory") {
		slog.Warn("using in-memory store, data is lost on restart")
		return memory.New(), func(context.Context) error { return nil }, nil
	}

	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, nil, err
	}
	if cfg.Development() {
		if err := db.SeedItems(gdb); err != nil {
			slog.Warn("seeding items failed", "error", err)
		}
	}
	return repository.New(gdb), func(ctx context.Context) error { return db.Ping(ctx, gdb) }, nil
}

func newLimiter(cfg *config.Config) (ratelimit.Limiter, func() error) {
	if cfg.Redis.Addr == "" {
		slog.Warn("REDIS_ADDR not set, rate limits are per process")
		return ratelimit.NewMemoryLimiter(), func() error { return nil }
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	limiter, err := ratelimit.NewRedisLimiter(ctx, client)
	if err != nil {
		slog.Warn("redis unavailable, rate limits are per process", "addr", cfg.Redis.Addr, "error", err)
		_ = client.Close()
		return ratelimit.NewMemoryLimiter(), func() error { return nil }
	}
	slog.Info("redis rate limiter ready", "addr", cfg.Redis.Addr)
	return limiter, limiter.Close
}

func main() {
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "optional yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := newLogger(cfg)
	slog.SetDefault(log)

	store, ping, err := openStores(cfg)
	if err != nil {
		slog.Error("database setup failed", "error", err)
		os.Exit(1)
	}

	limiter, closeLimiter := newLimiter(cfg)
	loc := cfg.Location()

	leaderboard, err := services.NewLeaderboard(store, services.SystemClock{}, loc)
	if err != nil {
		slog.Error("leaderboard setup failed", "error", err)
		os.Exit(1)
	}

	sinks := []services.EventSink{leaderboard}
	var publisher *kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		sinks = append(sinks, publisher)
		slog.Info("publishing vote events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	events := services.NewEventQueue(log, sinks...)

	ledger := services.NewLedger(store, store,
		services.WithLocation(loc),
		services.WithEvents(events),
		services.WithLogger(log),
	)

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		slog.Error("invalid trusted proxies", "error", err)
		os.Exit(1)
	}

	// Setup Sessions
	sessionStore := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   60 * 60 * 24 * 30,
		HttpOnly: true,
		Secure:   cfg.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("closetvote_session", sessionStore))
	r.Use(middleware.LoadUser(store))

	router.RegisterRoutes(r, router.Deps{
		Ledger:      ledger,
		Leaderboard: leaderboard,
		Moderation:  services.NewModerationService(store),
		Wardrobe:    services.NewWardrobeService(store, store),
		Captcha:     services.NewCaptchaService(),
		Items:       store,
		Identity:    middleware.NewIdentityResolver(cfg.Vote.IdentitySecret, cfg.Server.SecureCookies),
		Limiter:     limiter,
		Window:      cfg.RateLimit.Window,
		MaxRequests: cfg.RateLimit.Max,
		SiteURL:     cfg.Server.SiteURL,
		Ping:        ping,
	})

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("closetvote server starting", "port", cfg.Server.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// signal.Notify requires the channel to be buffered
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	if err := events.Close(ctx); err != nil {
		slog.Error("flush vote events", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			slog.Error("close kafka writer", "error", err)
		}
	}
	if err := closeLimiter(); err != nil {
		slog.Error("close rate limiter", "error", err)
	}
	slog.Info("server stopped")
}
