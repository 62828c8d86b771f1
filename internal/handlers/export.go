package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"code2diagram/internal/diagram"
	"code2diagram/internal/exporter"
	"code2diagram/internal/metrics"
	u "code2diagram/internal/utils"
)

// Exporter renders Mermaid text to an artifact.
type Exporter interface {
	Export(ctx context.Context, source string, format diagram.Format) (*exporter.Artifact, error)
}

// ExportRequest is the body of POST /api/export.
type ExportRequest struct {
	MermaidCode string `json:"mermaidCode"`
	Format      string `json:"format"`
}

// ExportEnvelope is returned for ?encoding=base64. Data holds SVG as text and
// binary formats base64 encoded.
type ExportEnvelope struct {
	Format      string `json:"format"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
	Encoding    string `json:"encoding"`
	Data        string `json:"data"`
}

// ExportService serves diagram export and the format catalog.
type ExportService struct {
	Exporter       Exporter
	Metrics        *metrics.Recorder
	MaxSourceChars int
}

func NewExportService(cfg u.Config, exp Exporter, rec *metrics.Recorder) *ExportService {
	return &ExportService{
		Exporter:       exp,
		Metrics:        rec,
		MaxSourceChars: cfg.Export.MaxSourceChars,
	}
}

// HandleExport renders the diagram and sends it as an attachment, or as a
// JSON envelope when the client asks for ?encoding=base64.
func (svc *ExportService) HandleExport(c *fiber.Ctx) error {
	req, err := svc.validateExportRequest(c)
	if err != nil {
		return err
	}
	source, format := req.Source, req.Format

	encoding := strings.ToLower(c.Query("encoding"))
	if encoding != "" && encoding != "base64" {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid encoding: only 'base64' is supported")
	}

	requestID := c.GetRespHeader(fiber.HeaderXRequestID)
	u.Info("Export request received", "format", format, "source_chars", utf8.RuneCountInString(source), "request_id", requestID)

	started := time.Now()
	art, err := svc.Exporter.Export(c.UserContext(), source, format)
	if err != nil {
		svc.Metrics.ObserveExport(string(format), string(diagram.ClassOf(err)), time.Since(started), 0)
		return err
	}
	svc.Metrics.ObserveExport(string(format), "success", time.Since(started), len(art.Data))
	u.Info("Diagram exported", "format", format, "bytes", len(art.Data), "took_ms", time.Since(started).Milliseconds(), "request_id", requestID)

	if encoding == "base64" {
		env := ExportEnvelope{
			Format:      string(art.Format),
			ContentType: art.ContentType(),
			Filename:    art.Filename(),
		}
		if art.Format.IsText() {
			env.Encoding = "utf-8"
			env.Data = art.Text()
		} else {
			env.Encoding = "base64"
			env.Data = art.Base64()
		}
		return c.JSON(env)
	}

	c.Set(fiber.HeaderContentType, art.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", art.Filename()))
	return c.Send(art.Data)
}

func (svc *ExportService) validateExportRequest(c *fiber.Ctx) (diagram.ExportRequest, error) {
	var body ExportRequest
	if err := c.BodyParser(&body); err != nil {
		return diagram.ExportRequest{}, fiber.NewError(fiber.StatusBadRequest, "Invalid request body: expected JSON")
	}

	switch {
	case body.MermaidCode == "":
		return diagram.ExportRequest{}, fiber.NewError(fiber.StatusBadRequest, "Mermaid code is required")
	case body.Format == "":
		return diagram.ExportRequest{}, fiber.NewError(fiber.StatusBadRequest, "Export format is required")
	}

	if strings.TrimSpace(body.MermaidCode) == "" {
		return diagram.ExportRequest{}, fiber.NewError(fiber.StatusBadRequest, "Mermaid code must be a non-empty string")
	}
	if svc.MaxSourceChars > 0 && utf8.RuneCountInString(body.MermaidCode) > svc.MaxSourceChars {
		return diagram.ExportRequest{}, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Mermaid code must be less than %d characters", svc.MaxSourceChars))
	}

	format, err := diagram.ParseFormat(body.Format)
	if err != nil {
		return diagram.ExportRequest{}, fiber.NewError(fiber.StatusBadRequest, "Supported formats: "+joinValues(diagram.Formats()))
	}
	return diagram.ExportRequest{Source: body.MermaidCode, Format: format}, nil
}

// HandleFormats lists the export formats with their MIME types.
func (svc *ExportService) HandleFormats(c *fiber.Ctx) error {
	return c.JSON(FormatCatalog())
}

func FormatCatalog() []CatalogEntry {
	formats := diagram.Formats()
	out := make([]CatalogEntry, 0, len(formats))
	for _, f := range formats {
		out = append(out, CatalogEntry{Value: string(f), Label: f.Label(), Description: f.Description(), MimeType: f.ContentType()})
	}
	return out
}
