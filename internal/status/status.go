// Package status persists provider side-channel signals, such as quota
// exhaustion, to a small JSON file read by operators and monitoring.
package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
)

// Sink receives provider status signals.
type Sink interface {
	Merge(s model.ProviderStatus) error
}

// File merges status entries into a JSON object stored at a path. Updates are
// written to a temporary file and renamed over the target, so readers never
// see a partial file.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile creates a File sink writing to path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the status file location.
func (f *File) Path() string { return f.path }

// Read returns the current status. A missing file yields an empty status.
func (f *File) Read() (model.ProviderStatus, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.ProviderStatus{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "status: read file")
	}
	st := model.ProviderStatus{}
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, eris.Wrap(err, "status: parse file")
	}
	return st, nil
}

// Merge implements Sink. Existing keys not in s are kept and the file is
// left alone when nothing changes. An unreadable existing file is logged and
// replaced.
func (f *File) Merge(s model.ProviderStatus) error {
	if len(s) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.Read()
	if err != nil {
		zap.L().Error("status: discarding unreadable status file", zap.String("path", f.path), zap.Error(err))
		current = nil
	}
	merged := model.ProviderStatus{}
	merged.Merge(current)
	merged.Merge(s)
	if current != nil && equalJSON(current, merged) {
		return nil
	}

	data, err := json.MarshalIndent(merged, "", "    ")
	if err != nil {
		return eris.Wrap(err, "status: marshal")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*~")
	if err != nil {
		return eris.Wrap(err, "status: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "status: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "status: close temp file")
	}
	return eris.Wrap(os.Rename(tmp.Name(), f.path), "status: replace file")
}

// Discard is a Sink that drops all signals.
type Discard struct{}

// Merge implements Sink.
func (Discard) Merge(model.ProviderStatus) error { return nil }

// equalJSON reports whether a and b encode to the same JSON.
func equalJSON(a, b model.ProviderStatus) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
