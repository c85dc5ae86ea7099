package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicflow/attendance-engine/internal/api"
	"github.com/clinicflow/attendance-engine/internal/attendance"
	"github.com/clinicflow/attendance-engine/internal/clock"
	"github.com/clinicflow/attendance-engine/internal/config"
	"github.com/clinicflow/attendance-engine/internal/consent"
	"github.com/clinicflow/attendance-engine/internal/db"
	"github.com/clinicflow/attendance-engine/internal/evolution"
	"github.com/clinicflow/attendance-engine/internal/identity"
	redisclient "github.com/clinicflow/attendance-engine/internal/redis"
	"github.com/clinicflow/attendance-engine/internal/timer"
)

const version = "0.3.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s clinic_tz=%s", cfg.Env, cfg.HTTPPort, cfg.ClinicTimezone)

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
	notifier := redisclient.NewConsentNotifier(rdb)
	credentials := identity.NewPgCredentialSource(pgPool)
	var provider identity.Provider
	if cfg.ReauthMode == "totp" {
		provider = identity.NewTOTPProvider(credentials)
	} else {
		provider = identity.NewPasswordProvider(credentials)
	}

	attendanceRepo := attendance.NewPgRepository(pgPool)
	attendanceSvc := attendance.NewService(attendanceRepo, timers, clk, cfg)

	consentRepo := consent.NewPgRepository(pgPool)
	consentSvc := consent.NewService(consentRepo, notifier, provider, clk, cfg)
	watcher := consent.NewWatcher(consentRepo, notifier, cfg.ConsentPollInterval)

	evolutionRepo := evolution.NewPgRepository(pgPool)
	evolutionSvc := evolution.NewService(evolutionRepo, consentSvc, attendanceSvc, timers, clk)

	router := api.NewRouter(api.RouterConfig{
		Attendance: attendanceSvc,
		Consents:   consentSvc,
		Watcher:    watcher,
		Evolutions: evolutionSvc,
		PgPool:     pgPool,
		Redis:      rdb,
		Env:        cfg.Env,
		Version:    version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
