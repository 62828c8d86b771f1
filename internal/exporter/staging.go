package exporter

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"

	"code2diagram/internal/diagram"
	u "code2diagram/internal/utils"
)

const stagingPrefix = "diagram-"

// Staging owns the directory where per-call render files live.
type Staging struct {
	dir string
}

// NewStaging returns a Staging rooted at dir. The directory is created lazily.
func NewStaging(dir string) *Staging {
	return &Staging{dir: dir}
}

// Dir returns the staging directory path.
func (s *Staging) Dir() string { return s.dir }

// RenderFiles is the input/output pair owned by a single export call.
type RenderFiles struct {
	Input  string
	Output string
}

// Acquire writes source to a fresh input file and reserves an output path with
// the extension of format. Names embed an xid, so concurrent calls never share
// a path; the input is opened with O_EXCL as a second guard.
func (s *Staging) Acquire(source string, format diagram.Format) (*RenderFiles, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create staging directory")
	}

	base := filepath.Join(s.dir, stagingPrefix+xid.New().String())
	files := &RenderFiles{
		Input:  base + ".mmd",
		Output: base + "." + format.Extension(),
	}

	f, err := os.OpenFile(files.Input, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "create staging input file")
	}
	if _, err := f.WriteString(source); err != nil {
		_ = f.Close()
		files.Release()
		return nil, errors.Wrap(err, "write staging input file")
	}
	if err := f.Close(); err != nil {
		files.Release()
		return nil, errors.Wrap(err, "close staging input file")
	}
	return files, nil
}

// Release removes both files. Failures are logged and never returned so they
// cannot mask the error of the call that owned the files.
func (f *RenderFiles) Release() {
	for _, p := range []string{f.Input, f.Output} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			u.Warn("Failed to remove staging file", "path", p, "error", err)
		}
	}
}

// Sweep removes the staging directory and everything in it. It is safe to
// call repeatedly and when the directory was never created.
func (s *Staging) Sweep() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return errors.Wrap(err, "sweep staging directory")
	}
	return nil
}

// SweepStale removes staging files older than maxAge and returns how many were
// deleted. It backs up per-call cleanup after a crash mid-render.
func (s *Staging) SweepStale(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "list staging directory")
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			u.Warn("Failed to remove stale staging file", "path", p, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		u.Info("Removed stale staging files", "count", removed, "dir", s.dir)
	}
	return removed, nil
}
