package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ehr-access/internal/adapters/auth/jwtauth"
	"ehr-access/internal/adapters/directory/userapi"
	"ehr-access/internal/adapters/records/recordapi"
	pg "ehr-access/internal/adapters/storage/postgres"
	"ehr-access/internal/config"
	"ehr-access/internal/middleware"
	"ehr-access/internal/platform/logger"
	"ehr-access/internal/ports/auth"
	"ehr-access/internal/router"
)

// @title        EHR Access API
// @version      1.0
// @description  Solicitudes de acceso entre proveedores y pacientes, share links efímeros y evaluación de permisos sobre registros médicos.
// @BasePath     /api
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("ehr-access", "info", "json")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New("ehr-access", cfg.LogLevel, cfg.LogFormat)

	middleware.RegisterMetrics()

	var verifier auth.Verifier
	if cfg.AuthJWTSecret != "" {
		verifier = jwtauth.NewVerifier([]byte(cfg.AuthJWTSecret))
	} else {
		// sin secret: modo dev, claims vía headers X-Debug-*
		log.Warn().Msg("AUTH_JWT_SECRET not set, running without token verification")
	}

	users, err := userapi.NewClient(userapi.Config{BaseURL: cfg.UserAPIURL, APIKey: cfg.UserAPIKey})
	if err != nil {
		log.Fatal().Err(err).Msg("user api client")
	}
	recs, err := recordapi.NewClient(recordapi.Config{BaseURL: cfg.RecordAPIURL, APIKey: cfg.RecordAPIKey})
	if err != nil {
		log.Fatal().Err(err).Msg("record api client")
	}

	var db *sql.DB
	if cfg.DBDSN != "" {
		db, err = pg.Open(cfg.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection")
		}
		defer db.Close()
	} else {
		log.Warn().Msg("DB_DSN not set, using in-memory storage")
	}

	shareSecret := []byte(cfg.ShareTokenSecret)
	if len(shareSecret) == 0 {
		// solo dev: links que no sobreviven un redeploy no importan acá
		shareSecret = []byte("dev-share-token-secret")
	}

	r := router.NewRouter(router.Options{
		AuthVerifier:     verifier,
		DB:               db,
		Directory:        users,
		Records:          recs,
		ShareTokenSecret: shareSecret,
		PublicBaseURL:    cfg.PublicBaseURL,
		Logger:           log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
