// Package exporter renders Mermaid text into SVG, PNG or PDF through an
// external renderer, staging input and output in uniquely named temporary
// files that are removed before Export returns.
package exporter

import (
	"context"
	"encoding/base64"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"code2diagram/internal/diagram"
	u "code2diagram/internal/utils"
)

var tracer = otel.Tracer("code2diagram/exporter")

// Artifact is a rendered diagram. It lives for one request and is never cached.
type Artifact struct {
	Format diagram.Format
	Data   []byte
}

func (a *Artifact) ContentType() string { return a.Format.ContentType() }

// Filename is the suggested download name.
func (a *Artifact) Filename() string { return "diagram." + a.Format.Extension() }

// Text returns the artifact as a string; meaningful for SVG.
func (a *Artifact) Text() string { return string(a.Data) }

// Base64 returns the artifact in a text-safe envelope for binary formats.
func (a *Artifact) Base64() string { return base64.StdEncoding.EncodeToString(a.Data) }

// Exporter validates diagram text and drives a Renderer through the staging directory.
type Exporter struct {
	staging  *Staging
	renderer Renderer
	timeout  time.Duration
}

// New returns an Exporter. A zero timeout leaves rendering bounded only by ctx.
func New(staging *Staging, renderer Renderer, timeout time.Duration) *Exporter {
	return &Exporter{staging: staging, renderer: renderer, timeout: timeout}
}

// Staging returns the staging area used by the exporter.
func (e *Exporter) Staging() *Staging { return e.staging }

// Export renders source in format. Errors are *diagram.Error; staging files
// are removed on every path once they exist.
func (e *Exporter) Export(ctx context.Context, source string, format diagram.Format) (*Artifact, error) {
	ctx, span := tracer.Start(ctx, "exporter.Export", trace.WithAttributes(
		attribute.String("diagram.format", string(format)),
		attribute.Int("diagram.source_chars", utf8.RuneCountInString(source)),
	))
	defer span.End()

	art, err := e.export(ctx, source, format)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(diagram.ClassOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("diagram.artifact_bytes", len(art.Data)))
	return art, nil
}

func (e *Exporter) export(ctx context.Context, source string, format diagram.Format) (*Artifact, error) {
	// Validating
	source = strings.TrimSpace(source)
	if source == "" || !diagram.ContainsKeyword(source) {
		return nil, diagram.NewError(diagram.ClassInvalidSyntax, "", errors.New("invalid Mermaid syntax: missing diagram keyword"))
	}
	if !format.Valid() {
		return nil, diagram.NewError(diagram.ClassUnsupportedFormat, "", errors.Errorf("unsupported export format: %s", format))
	}

	// Staging
	files, err := e.staging.Acquire(source, format)
	if err != nil {
		return nil, diagram.NewError(diagram.ClassRenderIO, "", err)
	}
	// CleaningUp runs on every exit path from here on.
	defer files.Release()

	// Rendering
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	started := time.Now()
	if err := e.renderer.Render(ctx, files.Input, files.Output, format); err != nil {
		var de *diagram.Error
		if errors.As(err, &de) {
			return nil, de
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, diagram.NewError(diagram.ClassTimeout, "", err)
		}
		return nil, diagram.NewError(diagram.ClassRenderProcess, "", err)
	}

	// ReadingResult
	data, err := os.ReadFile(files.Output)
	if err != nil {
		return nil, diagram.NewError(diagram.ClassRenderIO, "", errors.Wrap(err, "read renderer output"))
	}
	if len(data) == 0 {
		return nil, diagram.NewError(diagram.ClassRenderIO, "", errors.New("renderer produced an empty file"))
	}

	u.Debug("Diagram rendered", "format", format, "bytes", len(data), "took_ms", time.Since(started).Milliseconds())
	return &Artifact{Format: format, Data: data}, nil
}
