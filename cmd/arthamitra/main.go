package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/svaidyan/arthamitra/internal/classify"
	"github.com/svaidyan/arthamitra/internal/config"
	"github.com/svaidyan/arthamitra/internal/llm"
	"github.com/svaidyan/arthamitra/internal/logger"
	"github.com/svaidyan/arthamitra/internal/market"
	"github.com/svaidyan/arthamitra/internal/orchestrator"
	"github.com/svaidyan/arthamitra/internal/server"
	"github.com/svaidyan/arthamitra/internal/store"
	"github.com/svaidyan/arthamitra/internal/summarize"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.L.Debug("no .env file, using process environment", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.L.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	gen := llm.NewGenerator(llm.NewClient(cfg.LLM), cfg.LLM)

	fetcher := market.NewFetcher(&market.YahooProvider{}, cfg.Market)
	if fetcher.Probe() {
		logger.L.Info("stock fetcher ready")
	} else {
		logger.L.Warn("stock fetcher unavailable, answers degrade to general knowledge")
	}

	orch := orchestrator.New(
		classify.New(gen, cfg.Market.MaxSymbols),
		fetcher,
		gen,
		summarize.New(gen, cfg.History.MaxChars),
		st,
	)

	router := server.NewRouter(server.NewHandler(orch, st, fetcher))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.L.Info("starting server", "address", addr, "model", cfg.LLM.Model)
	if err := runServer(ctx, srv); err != nil {
		logger.L.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.L.Info("server stopped")
}

// runServer serves until the listener fails or ctx is cancelled, then drains
// in-flight requests.
func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}
