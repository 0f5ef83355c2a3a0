package observability

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Output is the writer every logger writes through. It always writes to the
// console writer and, once enabled, also to a size-rotated log file.
type Output struct {
	mu      sync.Mutex
	console io.Writer
	file    *RotatingFile
}

// NewOutput creates an Output writing to console.
func NewOutput(console io.Writer) *Output {
	return &Output{console: console}
}

// Write implements io.Writer. File write failures never block console output.
func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n, err := o.console.Write(p)
	if o.file != nil {
		_, _ = o.file.Write(p)
	}
	return n, err
}

// EnableFile starts mirroring output to path, replacing any previous file.
func (o *Output) EnableFile(path string, maxBytes int64) error {
	f, err := OpenRotatingFile(path, maxBytes)
	if err != nil {
		return err
	}

	o.mu.Lock()
	prev := o.file
	o.file = f
	o.mu.Unlock()

	if prev != nil {
		return prev.Close()
	}
	return nil
}

// DisableFile stops mirroring output to a file.
func (o *Output) DisableFile() error {
	o.mu.Lock()
	prev := o.file
	o.file = nil
	o.mu.Unlock()

	if prev != nil {
		return prev.Close()
	}
	return nil
}

// FilePath returns the active log file path, or "".
func (o *Output) FilePath() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.file == nil {
		return ""
	}
	return o.file.path
}

// Close closes the log file, if any.
func (o *Output) Close() error {
	return o.DisableFile()
}

// RotatingFile is an append-only file that moves itself to "<path>.1" once it
// would exceed maxBytes. One backup is kept.
type RotatingFile struct {
	path     string
	maxBytes int64
	f        *os.File
	size     int64
}

// OpenRotatingFile opens or creates path for appending.
func OpenRotatingFile(path string, maxBytes int64) (*RotatingFile, error) {
	if path == "" {
		return nil, errors.New("log file path is required")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("invalid max bytes: %d", maxBytes)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	r := &RotatingFile{path: path, maxBytes: maxBytes}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.f, r.size = f, info.Size()
	return nil
}

// Write appends p, rotating first if the file would grow past maxBytes.
func (r *RotatingFile) Write(p []byte) (int, error) {
	if r.size > 0 && r.size+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *RotatingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	if err := os.Rename(r.path, r.path+".1"); err != nil {
		return fmt.Errorf("rotating log file: %w", err)
	}
	return r.open()
}

// Close closes the underlying file.
func (r *RotatingFile) Close() error {
	return r.f.Close()
}
