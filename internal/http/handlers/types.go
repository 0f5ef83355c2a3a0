// Package handlers provides the skyplayer HTTP API handlers.
package handlers

import (
	"time"

	"github.com/jmylchreest/skyplayer/internal/engine"
	"github.com/jmylchreest/skyplayer/internal/models"
)

// PlaybackErrorResponse is a terminal engine error.
type PlaybackErrorResponse struct {
	Code     int    `json:"code"`
	CodeName string `json:"code_name"`
	Message  string `json:"message"`
}

// PlaybackErrorFromEngine converts an engine error; nil stays nil.
func PlaybackErrorFromEngine(err *engine.PlaybackError) *PlaybackErrorResponse {
	if err == nil {
		return nil
	}
	return &PlaybackErrorResponse{
		Code:     int(err.Code),
		CodeName: err.Code.String(),
		Message:  err.Message,
	}
}

// PlayerStateResponse is the current snapshot in event-transport form.
type PlayerStateResponse struct {
	Initialized bool                   `json:"initialized"`
	URL         string                 `json:"url,omitempty"`
	Snapshot    map[string]any         `json:"snapshot"`
	LastError   *PlaybackErrorResponse `json:"last_error,omitempty"`
}

// ResolutionResponse is a selectable video resolution.
type ResolutionResponse struct {
	ID       string `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Bitrate  int    `json:"bitrate"`
	Selected bool   `json:"selected"`
}

// TrackResponse is a selectable audio or subtitle track.
type TrackResponse struct {
	ID          string `json:"id"`
	Language    string `json:"language,omitempty"`
	Label       string `json:"label,omitempty"`
	DisplayName string `json:"display_name"`
	Selected    bool   `json:"selected"`
}

// TracksResponse lists every selectable track.
type TracksResponse struct {
	Resolutions []ResolutionResponse `json:"resolutions"`
	Audio       []TrackResponse      `json:"audio"`
	Subtitles   []TrackResponse      `json:"subtitles"`
}

// SessionResponse is a recorded playback session.
type SessionResponse struct {
	ID             models.ULID `json:"id"`
	URL            string      `json:"url"`
	StartedAt      time.Time   `json:"started_at"`
	EndedAt        *time.Time  `json:"ended_at,omitempty"`
	LastPositionMs int64       `json:"last_position_ms"`
	DurationMs     int64       `json:"duration_ms"`
	LastError      string      `json:"last_error,omitempty"`
	Active         bool        `json:"active"`
}

// SessionFromModel converts a model to a response.
func SessionFromModel(s *models.PlaybackSession) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		URL:            s.URL,
		StartedAt:      s.StartedAt,
		EndedAt:        s.EndedAt,
		LastPositionMs: s.LastPositionMs,
		DurationMs:     s.DurationMs,
		LastError:      s.LastError,
		Active:         s.IsActive(),
	}
}

// HealthResponse is the detailed health report.
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	CPU           CPUInfo           `json:"cpu"`
	Memory        MemoryInfo        `json:"memory"`
	Database      DatabaseHealth    `json:"database"`
	Player        PlayerHealth      `json:"player"`
	Checks        map[string]string `json:"checks"`
}

// CPUInfo holds load averages.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo holds system and process memory figures in MiB.
type MemoryInfo struct {
	TotalMemoryMB     float64 `json:"total_memory_mb"`
	UsedMemoryMB      float64 `json:"used_memory_mb"`
	AvailableMemoryMB float64 `json:"available_memory_mb"`
	ProcessRSSMB      float64 `json:"process_rss_mb"`
	ProcessPercentage float64 `json:"process_percentage"`
}

// DatabaseHealth reports history store reachability.
type DatabaseHealth struct {
	Status            string  `json:"status"`
	Driver            string  `json:"driver,omitempty"`
	ResponseTimeMS    float64 `json:"response_time_ms"`
	OpenConnections   int     `json:"open_connections"`
	InUseConnections  int     `json:"in_use_connections"`
	ResponseTimeLevel string  `json:"response_time_status"`
}

// PlayerHealth reports the current player and surfaces.
type PlayerHealth struct {
	Initialized   bool   `json:"initialized"`
	URL           string `json:"url,omitempty"`
	IsPlaying     bool   `json:"is_playing"`
	IsLoading     bool   `json:"is_loading"`
	LiveSurfaces  int    `json:"live_surfaces"`
	EventClients  int    `json:"event_clients"`
	LastErrorCode string `json:"last_error_code,omitempty"`
}
