// Package surface provides the registry that issues render surfaces the
// player draws video into.
package surface

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrReleased is returned when operating on a released texture or drawable.
	ErrReleased = errors.New("surface released")

	// ErrInvalidSize is returned for non-positive buffer dimensions.
	ErrInvalidSize = errors.New("invalid buffer size")
)

// Texture is the producer side of a registry entry.
type Texture interface {
	SetDefaultBufferSize(width, height int) error
}

// Entry is a registry-issued texture with an opaque integer id.
type Entry interface {
	ID() int64
	Texture() Texture
	Release() error
}

// Registry issues texture entries.
type Registry interface {
	CreateSurfaceTexture() (Entry, error)
}

// Drawable is a render target bound to a texture.
type Drawable interface {
	// Valid reports whether the drawable can still receive frames.
	Valid() bool
	Release() error
}

// MemoryRegistry is an in-process Registry. Entry ids count up from 1.
type MemoryRegistry struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*memoryEntry
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[int64]*memoryEntry)}
}

// CreateSurfaceTexture allocates a new entry.
func (r *MemoryRegistry) CreateSurfaceTexture() (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	e := &memoryEntry{id: r.nextID, registry: r, texture: &MemoryTexture{}}
	r.entries[e.id] = e
	return e, nil
}

// Live returns the number of entries not yet released.
func (r *MemoryRegistry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Lookup returns the texture of a live entry.
func (r *MemoryRegistry) Lookup(id int64) (*MemoryTexture, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.texture, true
}

func (r *MemoryRegistry) remove(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

type memoryEntry struct {
	id       int64
	registry *MemoryRegistry
	texture  *MemoryTexture
}

func (e *memoryEntry) ID() int64        { return e.id }
func (e *memoryEntry) Texture() Texture { return e.texture }

func (e *memoryEntry) Release() error {
	if !e.registry.remove(e.id) {
		return fmt.Errorf("releasing entry %d: %w", e.id, ErrReleased)
	}
	e.texture.released.Store(true)
	return nil
}

// MemoryTexture records the buffer size requested by the player.
type MemoryTexture struct {
	mu       sync.Mutex
	width    int
	height   int
	released atomic.Bool
}

// SetDefaultBufferSize sets the buffer dimensions.
func (t *MemoryTexture) SetDefaultBufferSize(width, height int) error {
	if t.released.Load() {
		return ErrReleased
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.width, t.height = width, height
	return nil
}

// BufferSize returns the last buffer dimensions set.
func (t *MemoryTexture) BufferSize() (width, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width, t.height
}

type drawable struct {
	texture  Texture
	released atomic.Bool
}

// NewDrawable binds a drawable to a texture.
func NewDrawable(t Texture) (Drawable, error) {
	if t == nil {
		return nil, errors.New("nil texture")
	}
	if mt, ok := t.(*MemoryTexture); ok && mt.released.Load() {
		return nil, ErrReleased
	}
	return &drawable{texture: t}, nil
}

func (d *drawable) Valid() bool {
	return !d.released.Load()
}

func (d *drawable) Release() error {
	if d.released.Swap(true) {
		return ErrReleased
	}
	return nil
}
