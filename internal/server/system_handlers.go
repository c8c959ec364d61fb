package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/avelis/coinkeeper/internal/database"
	"github.com/avelis/coinkeeper/internal/scheduler"
)

// SystemHandlers serves system monitoring endpoints and manual job triggers.
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	startTime time.Time

	ledgerDB *database.DB
	plansDB  *database.DB
	cacheDB  *database.DB

	walCheckpointJob  scheduler.Job
	pastDueDigestJob  scheduler.Job
	integrityCheckJob scheduler.Job
	backupJob         scheduler.Job
}

// NewSystemHandlers creates system handlers.
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	ledgerDB *database.DB,
	plansDB *database.DB,
	cacheDB *database.DB,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		dataDir:   dataDir,
		startTime: time.Now(),
		ledgerDB:  ledgerDB,
		plansDB:   plansDB,
		cacheDB:   cacheDB,
	}
}

// SetJobs registers job instances for manual triggering. Jobs are registered
// after server construction because the scheduler is wired later in startup.
func (h *SystemHandlers) SetJobs(walCheckpoint, pastDueDigest, integrityCheck, backup scheduler.Job) {
	h.walCheckpointJob = walCheckpoint
	h.pastDueDigestJob = pastDueDigest
	h.integrityCheckJob = integrityCheck
	h.backupJob = backup
}

// SystemStatusResponse is the payload for GET /api/system/status.
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
	GoVersion     string  `json:"go_version"`
	Timestamp     string  `json:"timestamp"`
}

// DBInfo describes a single database file.
type DBInfo struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	SizeMB float64 `json:"size_mb"`
	WALMB  float64 `json:"wal_mb"`
}

// DatabaseStatsResponse is the payload for GET /api/system/database/stats.
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DiskUsageResponse is the payload for GET /api/system/disk.
type DiskUsageResponse struct {
	DataDirMB float64 `json:"data_dir_mb"`
	TotalMB   float64 `json:"total_mb"`
}

// HandleHealth returns a minimal liveness response.
// GET /health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"})
}

// HandleSystemStatus returns process and host statistics.
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()

	h.writeJSON(w, SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		Timestamp:     time.Now().Format(time.RFC3339),
	})
}

// HandleDatabaseStats returns per-database file sizes.
// GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	databases := []DBInfo{}
	totalSizeMB := 0.0

	for _, db := range []*database.DB{h.ledgerDB, h.plansDB, h.cacheDB} {
		if db == nil {
			continue
		}

		info := DBInfo{Name: db.Name(), Path: db.Path()}
		if stat, err := os.Stat(db.Path()); err == nil {
			info.SizeMB = float64(stat.Size()) / 1024 / 1024
		}
		if stat, err := os.Stat(db.Path() + "-wal"); err == nil {
			info.WALMB = float64(stat.Size()) / 1024 / 1024
		}

		totalSizeMB += info.SizeMB + info.WALMB
		databases = append(databases, info)
	}

	h.writeJSON(w, DatabaseStatsResponse{
		Databases:   databases,
		TotalSizeMB: totalSizeMB,
		LastChecked: time.Now().Format(time.RFC3339),
	})
}

// HandleDiskUsage returns disk usage of the data directory.
// GET /api/system/disk
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting disk usage")

	dataDirSize := h.getDirSize(h.dataDir)

	h.writeJSON(w, DiskUsageResponse{
		DataDirMB: dataDirSize,
		TotalMB:   dataDirSize,
	})
}

// HandleTriggerWALCheckpoint runs the WAL checkpoint job immediately.
// POST /api/system/jobs/wal-checkpoint
func (h *SystemHandlers) HandleTriggerWALCheckpoint(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, h.walCheckpointJob, "WAL checkpoint")
}

// HandleTriggerPastDueDigest runs the past-due digest job immediately.
// POST /api/system/jobs/pastdue-digest
func (h *SystemHandlers) HandleTriggerPastDueDigest(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, h.pastDueDigestJob, "past-due digest")
}

// HandleTriggerIntegrityCheck runs the integrity check job immediately.
// POST /api/system/jobs/integrity-check
func (h *SystemHandlers) HandleTriggerIntegrityCheck(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, h.integrityCheckJob, "integrity check")
}

// HandleTriggerBackup runs the backup job immediately.
// POST /api/system/jobs/backup
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, h.backupJob, "backup")
}

func (h *SystemHandlers) runJob(w http.ResponseWriter, job scheduler.Job, label string) {
	if job == nil {
		h.log.Warn().Str("job", label).Msg("Job not registered yet")
		h.writeJSON(w, map[string]string{
			"status":  "error",
			"message": label + " job not registered",
		})
		return
	}

	h.log.Info().Str("job", label).Msg("Manual job trigger")

	if err := job.Run(); err != nil {
		h.log.Error().Err(err).Str("job", label).Msg("Manual job run failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": label + " completed",
	})
}

// getSystemStats calculates CPU and RAM usage percentages. A short sampling
// interval keeps the status endpoint responsive.
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

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
