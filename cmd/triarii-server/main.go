package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	appcfg "github.com/park285/triarii/internal/config"
	"github.com/park285/triarii/internal/httpapi"
	"github.com/park285/triarii/internal/match"
	"github.com/park285/triarii/internal/msgcat"
	"github.com/park285/triarii/internal/obslog"
	"github.com/park285/triarii/internal/render"
	"github.com/park285/triarii/internal/results"
	"github.com/park285/triarii/internal/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("TRIARII_CONFIG"), "optional config file (yaml, json, toml, env)")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load(*configPath)
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}
	policy, err := cfg.Policy()
	if err != nil {
		logger.Fatal("rules_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := store.Open(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis_init_error", zap.Error(err))
	}
	st := store.New(rdb, store.WithTTL(cfg.GameTTL()), store.WithRetries(cfg.CommitRetries))
	defer func() { _ = st.Close() }()

	repo, err := openResults(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("results_init_error", zap.Error(err))
	}
	defer func() { _ = repo.Close() }()

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("messages_init_error", zap.String("dir", cfg.MessagesDir), zap.Error(err))
	}

	games := match.NewManager(st, policy)
	games.AttachRepository(repo)

	srv := httpapi.NewServer(httpapi.Deps{
		Games:        games,
		Results:      repo,
		Renderer:     render.New(),
		Messages:     msgs,
		Health:       st,
		Origins:      cfg.Origins(),
		ResultsLimit: cfg.ResultsPageLimit,
	}).HTTPServer(cfg.HTTPAddr)
	// hijacked websocket streams end with the signal context
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listen",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("fof_seed", string(policy.Seed)),
			zap.Bool("postgres", cfg.DatabaseURL != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("server_error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server_shutdown_error", zap.Error(err))
	}
	logger.Info("server_stopped")
}

// openResults picks the Postgres archive when a DSN is configured and the
// in-memory one otherwise.
func openResults(ctx context.Context, databaseURL string) (results.Repository, error) {
	if databaseURL == "" {
		obslog.L().Info("results_memory")
		return results.NewMemoryRepository(), nil
	}
	pg, err := results.NewPostgres(databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}
	return pg, nil
}
