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

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"tasktrack/api/internal/app"
	"tasktrack/api/internal/authpw"
	"tasktrack/api/internal/config"
	"tasktrack/api/internal/email"
	"tasktrack/api/internal/identity"
	"tasktrack/api/internal/session"
	"tasktrack/api/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "tasktrack-api: %v\n", err)
		os.Exit(1)
	}
}

// userStore is satisfied by both the Postgres and in-memory account stores.
type userStore interface {
	authpw.UserStore
	Ping(ctx context.Context) error
}

// revocationStore is satisfied by both the Redis and in-memory revocation lists.
type revocationStore interface {
	identity.Revocations
	Ping(ctx context.Context) error
	Close() error
}

func run(args []string) error {
	var configPath, addr, env string
	flagSet := pflag.NewFlagSet("tasktrack-api", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "YAML config file layered over the environment")
	flagSet.StringVar(&addr, "addr", "", "listen address (overrides API_ADDR)")
	flagSet.StringVar(&env, "env", "", "runtime environment: development or production")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg := config.Load()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath, cfg)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if env != "" {
		cfg.Env = env
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, closeUsers, err := openUserStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeUsers()

	revocations, err := openRevocationStore(cfg, logger)
	if err != nil {
		return err
	}
	defer revocations.Close()

	directory := identity.NewDirectory(cfg.TokenSecret, cfg.AccessTTL, users, revocations)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		AppURL:   cfg.AppURL,
	})
	var outbox app.Outbox
	outboxCtx, stopOutbox := context.WithCancel(context.Background())
	outboxDone := make(chan struct{})
	if mailer.IsConfigured() {
		ob := email.NewOutbox(mailer, users, cfg.OutboxSize, logger.Named("outbox"))
		go func() {
			defer close(outboxDone)
			ob.Run(outboxCtx)
		}()
		outbox = ob
		logger.Info("email notifications enabled", zap.String("smtp_host", cfg.SMTPHost))
	} else {
		close(outboxDone)
		logger.Info("email notifications disabled, SMTP not configured")
	}

	service := app.New(app.Deps{
		Entities:  store.NewEntityStore(),
		Directory: directory,
		Accounts:  authpw.NewService(users),
		Outbox:    outbox,
		Checks: []app.Check{
			{Name: "users", Ping: users.Ping},
			{Name: "sessions", Ping: revocations.Ping},
		},
		Logger: logger.Named("service"),
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger.Named("http"))
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("TaskTrack API listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stopOutbox()
			<-outboxDone
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	stopOutbox()
	<-outboxDone
	logger.Info("TaskTrack API stopped")
	return nil
}

func newLogger(env string) (*zap.Logger, error) {
	if strings.EqualFold(env, "production") {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func openUserStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (userStore, func(), error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Info("using in-memory user store")
		return store.NewMemoryUserStore(), func() {}, nil
	}

	db, err := store.OpenPostgres(ctx, cfg.DatabaseURL, 10, 5*time.Second)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations failed: %w", err)
	}
	logger.Info("using postgres user store", zap.Strings("migrations_applied", applied))
	return store.NewPostgresUserStore(db), func() { _ = db.Close() }, nil
}

func openRevocationStore(cfg config.Config, logger *zap.Logger) (revocationStore, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		logger.Info("using in-memory token revocation list")
		return session.NewMemoryStore(), nil
	}
	redisStore, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	logger.Info("using redis token revocation list")
	return redisStore, nil
}
