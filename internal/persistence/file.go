// Package persistence stores a record collection as a single JSON array on
// disk.  It knows nothing about the records themselves: callers hand it a
// slice, it hands the same slice back after a reload.
package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrIO is returned when a snapshot cannot be read or written.
	ErrIO = errors.New("snapshot i/o failed")

	// ErrFormat is returned when a snapshot is not a JSON array of records.
	ErrFormat = errors.New("snapshot is malformed")
)

const mirrorTimeout = 5 * time.Second

// Mirror receives a copy of every snapshot that was written successfully.
type Mirror interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Option configures a File.
type Option func(*options)

type options struct {
	mirror Mirror
	logger *slog.Logger
	perm   fs.FileMode
}

// WithMirror uploads each saved snapshot to m.  Mirror failures are logged
// and do not fail the save.
func WithMirror(m Mirror) Option {
	return func(o *options) { o.mirror = m }
}

// WithLogger sets the logger used for mirror warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPerm sets the file mode of written snapshots (default 0644).
func WithPerm(perm fs.FileMode) Option {
	return func(o *options) { o.perm = perm }
}

// File is a JSON array snapshot of records of type T.  It is not safe for
// concurrent writers; the owning store serializes access.
type File[T any] struct {
	path string
	opts options
}

// NewFile returns a File for path.  Nothing is read until Load.
func NewFile[T any](path string, opts ...Option) *File[T] {
	o := options{logger: slog.Default(), perm: 0o644}
	for _, opt := range opts {
		opt(&o)
	}
	return &File[T]{path: path, opts: o}
}

// Path returns the snapshot location.
func (f *File[T]) Path() string { return f.path }

// Load reads and decodes the whole snapshot.
func (f *File[T]) Load() ([]T, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, f.path, err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: %s: top-level value is not an array", ErrFormat, f.path)
	}
	var records []T
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrFormat, f.path, err)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// Save encodes records and replaces the snapshot.  The file is written to a
// temporary sibling, synced and renamed over the old one, so readers never
// observe a half-written document.
func (f *File[T]) Save(ctx context.Context, records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrFormat, f.path, err)
	}
	if err := writeAtomic(f.path, data, f.opts.perm); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, f.path, err)
	}
	f.mirror(ctx, data)
	return nil
}

func (f *File[T]) mirror(ctx context.Context, data []byte) {
	if f.opts.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()
	key := filepath.Base(f.path)
	if err := f.opts.mirror.Put(ctx, key, data); err != nil {
		f.opts.logger.Warn("snapshot mirror failed", "file", f.path, "key", key, "error", err)
	}
}

type sequence struct {
	LastID int64 `json:"lastId"`
}

func (f *File[T]) seqPath() string { return f.path + ".seq" }

// LoadSequence reads the id high-water mark kept next to the snapshot.  The
// boolean is false when no sidecar exists yet.
func (f *File[T]) LoadSequence() (int64, bool, error) {
	data, err := os.ReadFile(f.seqPath())
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: read %s: %w", ErrIO, f.seqPath(), err)
	}
	var s sequence
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, false, fmt.Errorf("%w: decode %s: %w", ErrFormat, f.seqPath(), err)
	}
	return s.LastID, true, nil
}

// SaveSequence records the highest id ever assigned.
func (f *File[T]) SaveSequence(lastID int64) error {
	data, err := json.Marshal(sequence{LastID: lastID})
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrFormat, f.seqPath(), err)
	}
	if err := writeAtomic(f.seqPath(), data, f.opts.perm); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, f.seqPath(), err)
	}
	return nil
}

// Init creates an empty snapshot when none exists.  It reports whether a
// file was created.
func (f *File[T]) Init() (bool, error) {
	if _, err := os.Stat(f.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("%w: stat %s: %w", ErrIO, f.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return false, fmt.Errorf("%w: mkdir %s: %w", ErrIO, filepath.Dir(f.path), err)
	}
	if err := writeAtomic(f.path, []byte("[]"), f.opts.perm); err != nil {
		return false, fmt.Errorf("%w: write %s: %w", ErrIO, f.path, err)
	}
	return true, nil
}

func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
