// Command mockapi serves an in-memory mail backend for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nhle/mail-client/internal/mockapi"
	"github.com/nhle/mail-client/internal/model"
)

func main() {
	var (
		addr     = flag.String("addr", ":8000", "listen address")
		secret   = flag.String("secret", "", "token signing secret")
		demoUser = flag.String("demo-user", "demo", "seed a user with this name and password \"demo\"; empty disables")
		debug    = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	opts := []mockapi.Option{mockapi.WithLogger(logger)}
	if *secret != "" {
		opts = append(opts, mockapi.WithSecret(*secret))
	}
	srv := mockapi.New(opts...)

	if *demoUser != "" {
		if _, err := srv.SeedUser(model.Registration{
			Username: *demoUser,
			Email:    *demoUser + "@example.com",
			Password: "demo",
			FullName: "Demo User",
		}); err != nil {
			slog.Error("seeding demo user", "error", err)
			os.Exit(1)
		}
		slog.Info("seeded demo user", "username", *demoUser)
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("mock mail backend listening", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
