package player

import (
	"log/slog"

	"github.com/jmylchreest/skyplayer/internal/observability"
	"github.com/jmylchreest/skyplayer/internal/surface"
)

// DrawableFactory binds a drawable to a registry texture.
type DrawableFactory func(surface.Texture) (surface.Drawable, error)

// SurfaceManager owns at most one registry entry and the drawable bound to
// it. Its lifecycle is independent of the engine's. Not safe for concurrent
// use; the orchestrator loop is the only caller.
type SurfaceManager struct {
	registry    surface.Registry
	newDrawable DrawableFactory
	logger      *slog.Logger

	entry    surface.Entry
	drawable surface.Drawable
}

// NewSurfaceManager creates a manager in the empty state. It panics if
// registry is nil.
func NewSurfaceManager(registry surface.Registry) *SurfaceManager {
	if registry == nil {
		panic("player: nil surface registry")
	}
	return &SurfaceManager{
		registry:    registry,
		newDrawable: surface.NewDrawable,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger.
func (m *SurfaceManager) WithLogger(logger *slog.Logger) *SurfaceManager {
	m.logger = observability.WithComponent(logger, "surface")
	return m
}

// WithDrawableFactory overrides how drawables are created.
func (m *SurfaceManager) WithDrawableFactory(f DrawableFactory) *SurfaceManager {
	m.newDrawable = f
	return m
}

// CreateSurface returns the id of the current surface, allocating one if
// none exists. It reports false when allocation fails, in which case nothing
// partially created is kept.
func (m *SurfaceManager) CreateSurface() (int64, bool) {
	if m.entry != nil {
		return m.entry.ID(), true
	}

	entry, err := m.registry.CreateSurfaceTexture()
	if err != nil {
		m.logger.Error("creating surface texture", slog.String("error", err.Error()))
		return 0, false
	}

	d, err := m.newDrawable(entry.Texture())
	if err != nil {
		m.logger.Error("creating drawable",
			slog.Int64("surface_id", entry.ID()),
			slog.String("error", err.Error()))
		if rerr := entry.Release(); rerr != nil {
			m.logger.Warn("rolling back surface texture",
				slog.Int64("surface_id", entry.ID()),
				slog.String("error", rerr.Error()))
		}
		return 0, false
	}

	m.entry, m.drawable = entry, d
	m.logger.Debug("surface created", slog.Int64("surface_id", entry.ID()))
	return entry.ID(), true
}

// ID returns the current surface id.
func (m *SurfaceManager) ID() (int64, bool) {
	if m.entry == nil {
		return 0, false
	}
	return m.entry.ID(), true
}

// GetSurface returns the current drawable.
func (m *SurfaceManager) GetSurface() (surface.Drawable, bool) {
	if m.drawable == nil {
		return nil, false
	}
	return m.drawable, true
}

// SetBufferSize sets the default buffer size of the current surface. Without
// a surface the call is logged and ignored.
func (m *SurfaceManager) SetBufferSize(width, height int) {
	if m.entry == nil {
		m.logger.Debug("ignoring buffer size without a surface",
			slog.Int("width", width),
			slog.Int("height", height))
		return
	}
	if err := m.entry.Texture().SetDefaultBufferSize(width, height); err != nil {
		m.logger.Warn("setting surface buffer size",
			slog.Int64("surface_id", m.entry.ID()),
			slog.Int("width", width),
			slog.Int("height", height),
			slog.String("error", err.Error()))
	}
}

// Release releases the drawable and the registry entry. A failure releasing
// one does not prevent releasing the other. The manager is empty afterwards.
func (m *SurfaceManager) Release() {
	if m.drawable != nil {
		if err := m.drawable.Release(); err != nil {
			m.logger.Warn("releasing drawable", slog.String("error", err.Error()))
		}
	}
	if m.entry != nil {
		id := m.entry.ID()
		if err := m.entry.Release(); err != nil {
			m.logger.Warn("releasing surface texture",
				slog.Int64("surface_id", id),
				slog.String("error", err.Error()))
		} else {
			m.logger.Debug("surface released", slog.Int64("surface_id", id))
		}
	}
	m.entry, m.drawable = nil, nil
}
