package exporter

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"code2diagram/internal/diagram"
	u "code2diagram/internal/utils"
)

// Renderer converts the Mermaid file at input into an artifact written to output.
type Renderer interface {
	Render(ctx context.Context, input, output string, format diagram.Format) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, input, output string, format diagram.Format) error

func (f RendererFunc) Render(ctx context.Context, input, output string, format diagram.Format) error {
	return f(ctx, input, output, format)
}

// CLIRenderer runs the Mermaid CLI (mmdc) as a subprocess.
type CLIRenderer struct {
	Command         string   // executable, e.g. "mmdc" or "npx"
	Args            []string // prepended to the render flags, e.g. ["mmdc"] for npx
	Theme           string
	Background      string
	PuppeteerConfig string
}

// NewCLIRenderer returns a CLIRenderer with the neutral theme and a transparent background.
func NewCLIRenderer(command string, args ...string) *CLIRenderer {
	return &CLIRenderer{Command: command, Args: args, Theme: "neutral", Background: "transparent"}
}

func (r *CLIRenderer) args(input, output string) []string {
	args := append([]string(nil), r.Args...)
	args = append(args, "-i", input, "-o", output)
	if r.Theme != "" {
		args = append(args, "-t", r.Theme)
	}
	if r.Background != "" {
		args = append(args, "-b", r.Background)
	}
	if r.PuppeteerConfig != "" {
		args = append(args, "-p", r.PuppeteerConfig)
	}
	return args
}

// Render runs the CLI and waits for it. The output format follows the
// extension of output. A non-zero exit yields a render process error that
// carries the tool's output.
func (r *CLIRenderer) Render(ctx context.Context, input, output string, format diagram.Format) error {
	cmd := exec.CommandContext(ctx, r.Command, r.args(input, output)...)
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	u.Debug("Invoking renderer", "command", r.Command, "format", format, "input", input)
	err := cmd.Run()

	if s := strings.TrimSpace(stdout.String()); s != "" {
		u.Debug("renderer stdout", "output", s)
	}
	errStr := strings.TrimSpace(stderr.String())
	if errStr != "" {
		u.Warn("renderer stderr", "error_output", errStr)
	}

	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return diagram.NewError(diagram.ClassTimeout, "", errors.Wrap(ctx.Err(), "renderer did not finish"))
	}
	if errStr != "" {
		err = errors.Wrapf(err, "%s", errStr)
	}
	return diagram.NewError(diagram.ClassRenderProcess, "", errors.Wrapf(err, "%s failed", r.Command))
}
