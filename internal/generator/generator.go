// Package generator turns source code into Mermaid text by prompting a remote
// text-generation model and normalizing whatever it answers.
package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"code2diagram/internal/diagram"
	u "code2diagram/internal/utils"
)

var tracer = otel.Tracer("code2diagram/generator")

// Config selects the model endpoint and credential.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Generator produces diagram text for a request with a single upstream call.
// It never retries; retry policy belongs to the caller.
type Generator struct {
	cfg    Config
	client Client
}

// New returns a Generator backed by the Gemini API.
func New(cfg Config) *Generator {
	return &Generator{cfg: cfg, client: NewGeminiClient(cfg.BaseURL, cfg.Model, cfg.APIKey)}
}

// WithClient swaps the upstream client, mainly for tests.
func (g *Generator) WithClient(c Client) *Generator {
	if c != nil {
		g.client = c
	}
	return g
}

// Generate returns normalized Mermaid text for req. Errors are *diagram.Error.
func (g *Generator) Generate(ctx context.Context, req diagram.Request) (string, error) {
	ctx, span := tracer.Start(ctx, "generator.Generate", trace.WithAttributes(
		attribute.String("diagram.kind", string(req.Kind)),
		attribute.String("diagram.language", string(req.Language)),
		attribute.Int("diagram.code_chars", utf8.RuneCountInString(req.Code)),
	))
	defer span.End()

	text, err := g.generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(diagram.ClassOf(err)))
		return "", err
	}
	span.SetAttributes(attribute.Int("diagram.output_chars", utf8.RuneCountInString(text)))
	return text, nil
}

func (g *Generator) generate(ctx context.Context, req diagram.Request) (string, error) {
	if g.cfg.APIKey == "" {
		return "", diagram.NewError(diagram.ClassConfig, "Gemini API key not configured", nil)
	}

	prompt := BuildPrompt(req)
	u.Debug("Sending prompt to Gemini", "kind", req.Kind, "language", req.Language, "prompt_chars", utf8.RuneCountInString(prompt))

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	raw, err := g.client.Complete(ctx, prompt)
	if err != nil {
		return "", classify(err)
	}

	text := Normalize(raw)
	if text == "" {
		return "", diagram.NewError(diagram.ClassMalformedResponse, "empty response", nil)
	}
	if !diagram.HasHeader(text) {
		return "", diagram.NewError(diagram.ClassMalformedResponse, "response contains no Mermaid diagram",
			fmt.Errorf("no dialect keyword in %d characters of output", utf8.RuneCountInString(raw)))
	}
	u.Debug("Generated Mermaid code", "kind", req.Kind, "chars", utf8.RuneCountInString(text))
	return text, nil
}

// classify maps an upstream failure onto the error taxonomy.
func classify(err error) error {
	var de *diagram.Error
	if errors.As(err, &de) {
		return de
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return diagram.NewError(diagram.ClassTimeout, "", err)
	case errors.Is(err, context.Canceled):
		return diagram.NewError(diagram.ClassUpstream, "request canceled", err)
	}

	var se *StatusError
	if errors.As(err, &se) {
		return diagram.NewError(classifyMessage(se.StatusCode, se.Status+" "+se.Message), "", err)
	}

	if isNetworkError(err) {
		return diagram.NewError(diagram.ClassNetwork, "", err)
	}
	return diagram.NewError(classifyMessage(0, err.Error()), "", err)
}

func classifyMessage(status int, msg string) diagram.Class {
	msg = strings.ToLower(msg)
	switch {
	case status == 401 || status == 403 ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key not valid") ||
		strings.Contains(msg, "api_key_invalid"):
		return diagram.ClassAuth
	case status == 429 ||
		strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted"):
		return diagram.ClassRateLimit
	case status == 503 ||
		strings.Contains(msg, "loading") || strings.Contains(msg, "warming up"):
		return diagram.ClassUnavailable
	default:
		return diagram.ClassUpstream
	}
}

func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
