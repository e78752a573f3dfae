package server

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/studyflow/internal/database"
	"github.com/aristath/studyflow/internal/scheduler"
)

// SystemHandlers handles system monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	db          *database.DB
	backupJob   scheduler.Job // nil when backups are disabled
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, dataDir string, db *database.DB, backupJob scheduler.Job) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		db:          db,
		backupJob:   backupJob,
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Post("/backup", h.HandleTriggerBackup)
	})
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status         string  `json:"status"` // "healthy" or "unhealthy"
	UptimeHours    float64 `json:"uptime_hours"`
	CPUPercent     float64 `json:"cpu_percent"`
	RAMPercent     float64 `json:"ram_percent"`
	DatabaseSizeMB float64 `json:"database_size_mb"`
	BackupsSizeMB  float64 `json:"backups_size_mb"`
	IntegrityOK    bool    `json:"integrity_ok"`
}

// HandleSystemStatus returns process, host and database health
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()

	var dbSizeMB float64
	if info, err := os.Stat(h.db.Path()); err == nil {
		dbSizeMB = float64(info.Size()) / 1024 / 1024
	}

	status := "healthy"
	integrityOK := true
	if err := h.db.IntegrityCheck(); err != nil {
		h.log.Error().Err(err).Msg("Database integrity check failed")
		status = "unhealthy"
		integrityOK = false
	}

	writeJSON(w, SystemStatusResponse{
		Status:         status,
		UptimeHours:    time.Since(h.startupTime).Hours(),
		CPUPercent:     cpuPercent,
		RAMPercent:     ramPercent,
		DatabaseSizeMB: dbSizeMB,
		BackupsSizeMB:  h.getDirSize(filepath.Join(h.dataDir, "backups")),
		IntegrityOK:    integrityOK,
	})
}

// HandleTriggerBackup runs the backup job immediately
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backupJob == nil {
		h.writeError(w, "Backups are not enabled", http.StatusConflict)
		return
	}

	h.log.Info().Msg("Manual backup triggered")
	if err := h.backupJob.Run(); err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		h.writeError(w, "Backup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{
		"status":  "success",
		"message": "Backup completed successfully",
	})
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]string{"status": "error", "message": message})
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a short sampling interval to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
