package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"code2diagram/internal/diagram"
	"code2diagram/internal/metrics"
	u "code2diagram/internal/utils"
)

// Generator produces Mermaid text for a request.
type Generator interface {
	Generate(ctx context.Context, req diagram.Request) (string, error)
}

// GenerateRequest is the body of POST /api/generate-diagram.
type GenerateRequest struct {
	Code        string `json:"code"`
	Language    string `json:"language"`
	DiagramType string `json:"diagramType"`
}

// GenerateResponse is returned on success.
type GenerateResponse struct {
	Success     bool   `json:"success"`
	MermaidCode string `json:"mermaidCode"`
	Message     string `json:"message"`
}

// CatalogEntry describes one enum value for clients.
type CatalogEntry struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// DiagramService serves generation and the diagram-type and language catalogs.
type DiagramService struct {
	Generator    Generator
	Cache        *DiagramCache
	Metrics      *metrics.Recorder
	MaxCodeChars int
}

func NewDiagramService(cfg u.Config, gen Generator, cache *DiagramCache, rec *metrics.Recorder) *DiagramService {
	return &DiagramService{
		Generator:    gen,
		Cache:        cache,
		Metrics:      rec,
		MaxCodeChars: cfg.Generator.MaxCodeChars,
	}
}

// HandleGenerate validates the body, consults the cache and asks the model.
func (svc *DiagramService) HandleGenerate(c *fiber.Ctx) error {
	req, err := svc.validateGenerateRequest(c)
	if err != nil {
		return err
	}

	requestID := c.GetRespHeader(fiber.HeaderXRequestID)
	ctx := c.UserContext()

	if cached, ok := svc.Cache.Get(ctx, req); ok {
		svc.Metrics.IncCache(true)
		u.Info("Diagram cache hit", "kind", req.Kind, "request_id", requestID)
		c.Set("X-Diagram-Cache", "HIT")
		return c.JSON(GenerateResponse{Success: true, MermaidCode: cached, Message: "Diagram generated successfully"})
	}
	if svc.Cache != nil {
		svc.Metrics.IncCache(false)
	}

	u.Info("Generating diagram", "language", req.Language, "kind", req.Kind, "code_chars", utf8.RuneCountInString(req.Code), "request_id", requestID)

	started := time.Now()
	mermaid, err := svc.Generator.Generate(ctx, req)
	if err != nil {
		svc.Metrics.ObserveGenerate(string(req.Kind), string(diagram.ClassOf(err)), time.Since(started))
		return err
	}
	svc.Metrics.ObserveGenerate(string(req.Kind), "success", time.Since(started))

	svc.Cache.Set(ctx, req, mermaid)
	if svc.Cache != nil {
		c.Set("X-Diagram-Cache", "MISS")
	}

	u.Info("Diagram generated", "kind", req.Kind, "took_ms", time.Since(started).Milliseconds(), "request_id", requestID)
	return c.JSON(GenerateResponse{Success: true, MermaidCode: mermaid, Message: "Diagram generated successfully"})
}

func (svc *DiagramService) validateGenerateRequest(c *fiber.Ctx) (diagram.Request, error) {
	var body GenerateRequest
	if err := c.BodyParser(&body); err != nil {
		return diagram.Request{}, fiber.NewError(fiber.StatusBadRequest, "Invalid request body: expected JSON")
	}

	switch {
	case body.Code == "":
		return diagram.Request{}, fiber.NewError(fiber.StatusBadRequest, "Code is required")
	case body.Language == "":
		return diagram.Request{}, fiber.NewError(fiber.StatusBadRequest, "Language is required")
	case body.DiagramType == "":
		return diagram.Request{}, fiber.NewError(fiber.StatusBadRequest, "Diagram type is required")
	}

	if strings.TrimSpace(body.Code) == "" {
		return diagram.Request{}, fiber.NewError(fiber.StatusBadRequest, "Code must be a non-empty string")
	}
	if svc.MaxCodeChars > 0 && utf8.RuneCountInString(body.Code) > svc.MaxCodeChars {
		return diagram.Request{}, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Code must be less than %d characters", svc.MaxCodeChars))
	}

	lang, err := diagram.ParseLanguage(body.Language)
	if err != nil {
		return diagram.Request{}, fiber.NewError(fiber.StatusBadRequest, "Supported languages: "+joinValues(diagram.Languages()))
	}
	kind, err := diagram.ParseKind(body.DiagramType)
	if err != nil {
		return diagram.Request{}, fiber.NewError(fiber.StatusBadRequest, "Supported diagram types: "+joinValues(diagram.Kinds()))
	}

	return diagram.Request{Code: body.Code, Language: lang, Kind: kind}, nil
}

// HandleDiagramTypes lists the supported diagram kinds.
func (svc *DiagramService) HandleDiagramTypes(c *fiber.Ctx) error {
	return c.JSON(DiagramTypeCatalog())
}

// HandleLanguages lists the supported source languages.
func (svc *DiagramService) HandleLanguages(c *fiber.Ctx) error {
	return c.JSON(LanguageCatalog())
}

func DiagramTypeCatalog() []CatalogEntry {
	kinds := diagram.Kinds()
	out := make([]CatalogEntry, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, CatalogEntry{Value: string(k), Label: k.Label(), Description: k.Description()})
	}
	return out
}

func LanguageCatalog() []CatalogEntry {
	langs := diagram.Languages()
	out := make([]CatalogEntry, 0, len(langs))
	for _, l := range langs {
		out = append(out, CatalogEntry{Value: string(l), Label: l.Label()})
	}
	return out
}

func joinValues[T ~string](vals []T) string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = string(v)
	}
	return strings.Join(s, ", ")
}
