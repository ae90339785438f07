package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore is a durable tier kept in a single YAML preferences file. It suits a
// single-device client such as the CLI, where running Redis would be unreasonable.
//
// Writes go to a temporary file in the same directory and are renamed into place, so a
// crash never leaves a half-written file behind. A file that does not parse reads as
// empty and is replaced by the next write.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// FileStoreOption customises a FileStore.
type FileStoreOption func(*FileStore)

// WithFileLogger sets the logger that reports an unparseable preferences file.
// Defaults to slog.Default().
func WithFileLogger(l *slog.Logger) FileStoreOption {
	return func(f *FileStore) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFileStore returns a store persisting to path. The file is created on first write.
func NewFileStore(path string, opts ...FileStoreOption) *FileStore {
	f := &FileStore{path: path, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	values, _, err := f.loadOrReset()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	values, _, err := f.loadOrReset()
	if err != nil {
		return err
	}
	values[key] = value
	return f.write(values)
}

func (f *FileStore) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	values, reset, err := f.loadOrReset()
	if err != nil {
		return err
	}
	changed := reset
	for _, k := range keys {
		if _, ok := values[k]; ok {
			delete(values, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.write(values)
}

func (f *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// loadOrReset is load with an unparseable file treated as empty. reset reports that the
// file on disk should be rewritten.
func (f *FileStore) loadOrReset() (values map[string]string, reset bool, err error) {
	values, err = f.load()
	if errors.Is(err, ErrRecordCorrupt) {
		f.logger.Warn("preferences file corrupt, treating as empty",
			slog.String("path", f.path),
			slog.String("error", err.Error()))
		return map[string]string{}, true, nil
	}
	return values, false, err
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: preferences file: %v", ErrRecordCorrupt, err)
	}
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

func (f *FileStore) write(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
