package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/jmylchreest/skyplayer/internal/transport"
)

// DatabaseChecker is the history store as seen by the health check.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
	Driver() string
	Stats() (map[string]any, error)
}

// SurfaceCounter reports how many surfaces are registered.
type SurfaceCounter interface {
	Live() int
}

// HealthHandler serves /health and /livez.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        DatabaseChecker
	host      *transport.Host
	surfaces  SurfaceCounter
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version, startTime: time.Now()}
}

// WithDB adds history store checks.
func (h *HealthHandler) WithDB(db DatabaseChecker) *HealthHandler {
	h.db = db
	return h
}

// WithPlayer adds player and surface status.
func (h *HealthHandler) WithPlayer(host *transport.Host, surfaces SurfaceCounter) *HealthHandler {
	h.host = host
	h.surfaces = surfaces
	return h
}

// HealthInput is the input for the health endpoints.
type HealthInput struct{}

// HealthOutput is the output for the health endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// LivezOutput is the output for the liveness endpoint.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Register registers the health routes.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health with host metrics, history store and player status",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      "GET",
		Path:        "/livez",
		Summary:     "Liveness probe",
		Tags:        []string{"System"},
	}, h.GetLivez)
}

// GetLivez reports that the process is serving requests.
func (h *HealthHandler) GetLivez(_ context.Context, _ *HealthInput) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// GetHealth returns the detailed health report.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	db := h.databaseHealth(ctx)
	status := "healthy"
	if db.Status == "error" {
		status = "degraded"
	}

	memory := memoryInfo()
	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			CPU:           cpuInfo(),
			Memory:        memory,
			Database:      db,
			Player:        h.playerHealth(),
			Checks: map[string]string{
				"database": db.Status,
			},
		},
	}, nil
}

func cpuInfo() CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}
	if avg, err := load.Avg(); err == nil && avg != nil {
		info.Load1Min, info.Load5Min, info.Load15Min = avg.Load1, avg.Load5, avg.Load15
		if info.Cores > 0 {
			info.LoadPercentage1Min = avg.Load1 / float64(info.Cores) * 100
		}
	}
	return info
}

func memoryInfo() MemoryInfo {
	const mib = 1024 * 1024
	var info MemoryInfo

	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		info.TotalMemoryMB = float64(vm.Total) / mib
		info.UsedMemoryMB = float64(vm.Used) / mib
		info.AvailableMemoryMB = float64(vm.Available) / mib
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if pm, err := proc.MemoryInfo(); err == nil && pm != nil {
			info.ProcessRSSMB = float64(pm.RSS) / mib
			if info.TotalMemoryMB > 0 {
				info.ProcessPercentage = info.ProcessRSSMB / info.TotalMemoryMB * 100
			}
		}
	}
	return info
}

func (h *HealthHandler) databaseHealth(ctx context.Context) DatabaseHealth {
	if h.db == nil {
		return DatabaseHealth{Status: "disabled"}
	}

	health := DatabaseHealth{Status: "ok", Driver: h.db.Driver(), ResponseTimeLevel: "healthy"}

	start := time.Now()
	err := h.db.Ping(ctx)
	health.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000
	switch {
	case err != nil:
		health.Status = "error"
		health.ResponseTimeLevel = "error"
	case health.ResponseTimeMS > 100:
		health.ResponseTimeLevel = "slow"
	}

	if stats, err := h.db.Stats(); err == nil {
		health.OpenConnections, _ = stats["open_connections"].(int)
		health.InUseConnections, _ = stats["in_use"].(int)
	}
	return health
}

func (h *HealthHandler) playerHealth() PlayerHealth {
	var health PlayerHealth
	if h.surfaces != nil {
		health.LiveSurfaces = h.surfaces.Live()
	}
	if h.host == nil {
		return health
	}

	health.EventClients = h.host.Hub().SubscriberCount()
	p, url, ok := h.host.Current()
	if !ok {
		return health
	}

	state := p.State()
	health.Initialized = true
	health.URL = url
	health.IsPlaying = state.IsPlaying
	health.IsLoading = state.IsLoading
	if pe := p.LastError(); pe != nil {
		health.LastErrorCode = pe.Code.String()
	}
	return health
}
