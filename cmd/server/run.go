package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codenames-party/codenames-backend/internal/game"
	"github.com/codenames-party/codenames-backend/internal/httpapi"
	"github.com/codenames-party/codenames-backend/internal/registry"
	"github.com/codenames-party/codenames-backend/internal/store"
	"github.com/codenames-party/codenames-backend/internal/wordlist"
)

func run(ctx context.Context, cfg *Config) error {
	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	words, err := wordlist.Load(cfg.WordFile)
	if err != nil {
		return err
	}
	if len(words) < game.BoardSize {
		return fmt.Errorf("%w: pool has %d words, need %d", game.ErrConfiguration, len(words), game.BoardSize)
	}

	var rec store.Recorder = store.Nop{}
	if cfg.DatabaseURL != "" {
		pg, err := store.Open(cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		rec = pg
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := registry.NewRegistry(ctx, registry.Config{
		Words:     words,
		TurnTimer: cfg.TurnTimer,
		Recorder:  rec,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:    cfg.addr(),
		Handler: httpapi.SetupRoutes(reg, log),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.Int("pool", len(words)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		reg.Inbox() <- registry.Shutdown{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
