package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicelive-bridge/auth"
	"voicelive-bridge/config"
	"voicelive-bridge/server"
	"voicelive-bridge/session"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("endpoint   : %s", cfg.Endpoint)
	log.Printf("model      : %s", cfg.Model)
	log.Printf("voice      : %s", cfg.VoiceName)

	// Redis is optional; without it sessions and tokens live in memory only
	rdb := newRedisClient(cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	var tokenStore auth.Store
	if rdb != nil {
		tokenStore = auth.NewRedisStore(rdb)
	} else {
		tokenStore = auth.NewMemoryStore()
	}
	defer tokenStore.Close()
	authService := auth.NewService(tokenStore, cfg.AdminUsername, cfg.AdminPassword, cfg.SessionTokenTTL)

	sessionManager, err := session.NewManager(cfg, rdb)
	if err != nil {
		log.Fatalf("Failed to create session manager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go sessionManager.StartCleanupRoutine(ctx)

	srv := server.NewServer(cfg, sessionManager, authService)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped")
}

// newRedisClient connects to Redis, returning nil when it is unreachable
func newRedisClient(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis unavailable, using in-memory stores: %v", err)
		client.Close()
		return nil
	}
	return client
}
