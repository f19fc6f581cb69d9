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

	"mazerush/config"
	"mazerush/game"
	"mazerush/logger"
	"mazerush/server"
)

// Maze Rush 入口：加载配置，启动 HTTP + WebSocket 服务
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	registry := game.NewRegistry(cfg.Registry(), log, &game.Metrics{})
	srv := server.New(registry, log, server.Options{
		SendBuffer: cfg.SendBuffer,
		WebDir:     cfg.WebDir,
		Settings:   cfg,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Maze Rush listening on %s; open http://localhost%v/", cfg.Addr, cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Warnw("http shutdown", "error", err)
	}
	srv.Close()
	registry.Close()
}
