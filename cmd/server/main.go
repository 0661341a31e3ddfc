package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Tyrowin/globalchat/internal/server"
	"github.com/Tyrowin/globalchat/internal/store"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to config yaml (optional)")
	flag.Parse()

	cfg, err := server.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal: config:", err)
		os.Exit(1)
	}

	logger, err := server.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal: logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.Open(store.Config{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		Cap:    cfg.HistoryCap,
	}, logger)
	if err != nil {
		logger.Fatal("could not open store", zap.Error(err))
	}

	hub := server.NewHub(logger)
	limiter := server.NewPostLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
	srv := server.NewServer(cfg, logger, st, hub, limiter)

	janitor := srv.StartJanitor()
	httpServer := server.CreateServer(cfg.Addr, srv.Routes())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		errs <- server.StartServer(httpServer, logger)
	}()

	select {
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	_ = server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger)
	hub.Shutdown()
	<-janitor.Stop().Done()
	if err := st.Close(); err != nil {
		logger.Warn("error closing store", zap.Error(err))
	}
	logger.Info("goodbye")
}
