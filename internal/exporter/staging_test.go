package exporter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code2diagram/internal/diagram"
)

func TestAcquire_WritesInputAndReservesOutput(t *testing.T) {
	s := NewStaging(filepath.Join(t.TempDir(), "staging"))

	files, err := s.Acquire("graph TD\n  A-->B", diagram.FormatPNG)
	require.NoError(t, err)
	defer files.Release()

	assert.Equal(t, s.Dir(), filepath.Dir(files.Input))
	assert.True(t, strings.HasSuffix(files.Input, ".mmd"))
	assert.True(t, strings.HasSuffix(files.Output, ".png"))
	assert.True(t, strings.HasPrefix(filepath.Base(files.Input), stagingPrefix))

	got, err := os.ReadFile(files.Input)
	require.NoError(t, err)
	assert.Equal(t, "graph TD\n  A-->B", string(got))

	_, err = os.Stat(files.Output)
	assert.True(t, os.IsNotExist(err), "output is reserved, not created")

	info, err := os.Stat(files.Input)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAcquire_NamesAreUnique(t *testing.T) {
	s := NewStaging(t.TempDir())
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		files, err := s.Acquire("graph TD", diagram.FormatSVG)
		require.NoError(t, err)
		assert.False(t, seen[files.Input], "duplicate %s", files.Input)
		seen[files.Input] = true
	}
}

func TestAcquire_DirectoryFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := NewStaging(filepath.Join(blocker, "staging")).Acquire("graph TD", diagram.FormatSVG)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create staging directory")
}

func TestRelease_RemovesBothAndToleratesMissing(t *testing.T) {
	s := NewStaging(t.TempDir())
	files, err := s.Acquire("graph TD", diagram.FormatSVG)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(files.Output, []byte("<svg/>"), 0o600))

	files.Release()
	files.Release()

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSweep_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "staging")
	s := NewStaging(dir)

	require.NoError(t, s.Sweep(), "never created")

	_, err := s.Acquire("graph TD", diagram.FormatSVG)
	require.NoError(t, err)
	require.NoError(t, s.Sweep())
	require.NoError(t, s.Sweep())

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestSweepStale_OnlyOldStagingFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStaging(dir)

	old, err := s.Acquire("graph TD", diagram.FormatSVG)
	require.NoError(t, err)
	fresh, err := s.Acquire("graph TD", diagram.FormatSVG)
	require.NoError(t, err)
	foreign := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(foreign, []byte("x"), 0o600))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old.Input, past, past))
	require.NoError(t, os.Chtimes(foreign, past, past))

	n, err := s.SweepStale(10 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(old.Input)
	assert.True(t, os.IsNotExist(err))
	assert.FileExists(t, fresh.Input)
	assert.FileExists(t, foreign)
}

func TestSweepStale_MissingDir(t *testing.T) {
	n, err := NewStaging(filepath.Join(t.TempDir(), "absent")).SweepStale(time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
}
