package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicflow/attendance-engine/internal/attendance"
	"github.com/clinicflow/attendance-engine/internal/clock"
	"github.com/clinicflow/attendance-engine/internal/config"
	"github.com/clinicflow/attendance-engine/internal/db"
	redisclient "github.com/clinicflow/attendance-engine/internal/redis"
	"github.com/clinicflow/attendance-engine/internal/timer"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("stale-session-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running stale-session worker in env=%s interval=%s stale_age=%s",
		cfg.Env, cfg.WorkerInterval, cfg.StaleSessionAge)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	clk := clock.System()
	timers := timer.NewRedisStore(rdb, clk, 24*time.Hour)
	repo := attendance.NewPgRepository(pgPool)
	svc := attendance.NewService(repo, timers, clk, cfg)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.StaleSessionAge)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping stale-session worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.StaleSessionAge)
		}
	}
}

func runOnce(ctx context.Context, svc *attendance.Service, staleAge time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	closed, err := svc.CompleteStaleArrivals(runCtx, staleAge)
	if err != nil {
		log.Printf("stale-session run error: %v", err)
		return
	}
	log.Printf("stale-session run complete: closed=%d in %s", closed, time.Since(start))
}
