// Package main is the entry point for the StudyFlow server: a personal
// study tracker that correlates study output with sleep, stress and
// activity data and models the relationships with a handful of
// statistical model families.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/studyflow/internal/backup"
	"github.com/aristath/studyflow/internal/config"
	"github.com/aristath/studyflow/internal/database"
	"github.com/aristath/studyflow/internal/engine"
	"github.com/aristath/studyflow/internal/scheduler"
	"github.com/aristath/studyflow/internal/server"
	"github.com/aristath/studyflow/internal/store"
	"github.com/aristath/studyflow/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting StudyFlow")

	db, err := database.New(database.Config{
		Path: cfg.DatabasePath(),
		Name: "studyflow",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	st := store.New(db, log)
	if err := st.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	eng := engine.New(st, engine.DefaultConfig(), log)

	// Backup service: local snapshots always, S3 replication when configured.
	var backupJob scheduler.Job
	var backupSvc *backup.Service
	if cfg.Backup.Enabled {
		var remote *backup.S3Client
		if cfg.Backup.S3Bucket != "" {
			remote, err = backup.NewS3Client(context.Background(), backup.S3Config{
				Bucket:    cfg.Backup.S3Bucket,
				Endpoint:  cfg.Backup.S3Endpoint,
				Region:    cfg.Backup.S3Region,
				AccessKey: cfg.Backup.S3AccessKey,
				SecretKey: cfg.Backup.S3SecretKey,
			}, log)
			if err != nil {
				log.Error().Err(err).Msg("Failed to configure S3 client, backups stay local")
				remote = nil
			}
		}
		backupSvc = backup.New(db, cfg.DataDir, cfg.Backup.RetainLocal, remote, log)
		backupJob = scheduler.NewBackupJob(backupSvc, cfg.Backup.RetentionDays, log)
	}

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.Backup.MaintenanceSchedule, scheduler.NewMaintenanceJob(db, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule maintenance job")
	}
	if backupJob != nil {
		if err := sched.AddJob(cfg.Backup.Schedule, backupJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule backup job")
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:       log,
		DB:        db,
		Store:     st,
		Engine:    eng,
		Config:    cfg,
		BackupJob: backupJob,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
