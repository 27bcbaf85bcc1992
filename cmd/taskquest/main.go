package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/taskquest/taskquest/internal/config"
	"github.com/taskquest/taskquest/internal/database"
	"github.com/taskquest/taskquest/internal/engine"
	"github.com/taskquest/taskquest/internal/logging"
	"github.com/taskquest/taskquest/internal/server"
	ws "github.com/taskquest/taskquest/internal/websocket"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	godotenv.Load()

	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db, logger)

	sweeper := engine.NewSweeper(srv.Engine(), cfg.SweepInterval, func(count int64) {
		srv.Hub().Broadcast(ws.NewMessage("task", "reset", 0, map[string]any{"count": count}))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.Start(ctx)

	// Periodic housekeeping: expired sessions, stale rate-limit entries, and
	// notifications dismissed more than 30 days ago.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("delete expired sessions", "error", err)
				}
				srv.RateLimiter().Cleanup()
				cutoff := time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02 15:04:05")
				if _, err := srv.NotificationStore().DeleteRead(cutoff); err != nil {
					logger.Error("delete read notifications", "error", err)
				}
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("TaskQuest running at http://localhost:%s\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
