package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"todoquest/internal/config"
	"todoquest/internal/serverapp"
)

func main() {
	cfg, err := config.Load("todoquest_config.yml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg, err = config.FromEnv(cfg)
	if err != nil {
		log.Fatalf("apply env config: %v", err)
	}

	app, err := serverapp.New(serverapp.Options{
		Config: cfg,
		Logger: log.Default(),
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.Engine.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: app.Handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on http://localhost%s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
