package exporter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code2diagram/internal/diagram"
)

// fakeMMDC writes a shell script that accepts mmdc's -i/-o flags.
func fakeMMDC(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script renderer")
	}
	p := filepath.Join(t.TempDir(), "mmdc")
	script := "#!/bin/sh\nin=\"$2\"\nout=\"$4\"\n" + body + "\n"
	require.NoError(t, os.WriteFile(p, []byte(script), 0o755))
	return p
}

func TestCLIRenderer_Args(t *testing.T) {
	r := NewCLIRenderer("npx", "mmdc")
	r.PuppeteerConfig = "/etc/puppeteer.json"
	assert.Equal(t,
		[]string{"mmdc", "-i", "in.mmd", "-o", "out.svg", "-t", "neutral", "-b", "transparent", "-p", "/etc/puppeteer.json"},
		r.args("in.mmd", "out.svg"))

	bare := &CLIRenderer{Command: "mmdc"}
	assert.Equal(t, []string{"-i", "a", "-o", "b"}, bare.args("a", "b"))
}

func TestCLIRenderer_Success(t *testing.T) {
	bin := fakeMMDC(t, `{ printf '<svg>'; cat "$in"; printf '</svg>'; } > "$out"`)
	e, dir := newTestExporter(t, NewCLIRenderer(bin))

	art, err := e.Export(context.Background(), "sequenceDiagram\n  A->>B: hi", diagram.FormatSVG)
	require.NoError(t, err)
	assert.Equal(t, "<svg>sequenceDiagram\n  A->>B: hi</svg>", art.Text())
	assertNoLeftovers(t, dir)
}

func TestCLIRenderer_NonZeroExit(t *testing.T) {
	bin := fakeMMDC(t, `echo "Parse error on line 1" >&2; exit 1`)
	e, dir := newTestExporter(t, NewCLIRenderer(bin))

	_, err := e.Export(context.Background(), "graph TD\n  A--", diagram.FormatPNG)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diagram.ErrRenderProcess), "got %v", err)
	assert.Contains(t, err.Error(), "Parse error on line 1")
	assertNoLeftovers(t, dir)
}

func TestCLIRenderer_MissingBinary(t *testing.T) {
	r := NewCLIRenderer(filepath.Join(t.TempDir(), "no-such-mmdc"))
	err := r.Render(context.Background(), "in.mmd", "out.svg", diagram.FormatSVG)
	assert.True(t, errors.Is(err, diagram.ErrRenderProcess))
}

func TestCLIRenderer_Timeout(t *testing.T) {
	bin := fakeMMDC(t, `exec sleep 5`)
	dir := filepath.Join(t.TempDir(), "staging")
	e := New(NewStaging(dir), NewCLIRenderer(bin), 100*time.Millisecond)

	start := time.Now()
	_, err := e.Export(context.Background(), "graph TD", diagram.FormatSVG)
	require.Error(t, err)
	assert.True(t, errors.Is(err, diagram.ErrTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 4*time.Second)
	assertNoLeftovers(t, dir)
}

func TestChromeRenderer_MissingBrowser(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mmd")
	require.NoError(t, os.WriteFile(in, []byte("graph TD"), 0o600))

	r := &ChromeRenderer{ExecPath: filepath.Join(dir, "no-such-chrome"), NoSandbox: true}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := r.Render(ctx, in, filepath.Join(dir, "out.svg"), diagram.FormatSVG)
	require.Error(t, err)
	assert.False(t, errors.Is(err, diagram.ErrInvalidSyntax))
	_, statErr := os.Stat(filepath.Join(dir, "out.svg"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestChromeRenderer_MissingInput(t *testing.T) {
	r := &ChromeRenderer{}
	err := r.Render(context.Background(), filepath.Join(t.TempDir(), "absent.mmd"), "out.svg", diagram.FormatSVG)
	assert.True(t, errors.Is(err, diagram.ErrRenderIO))
}
