package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"code2diagram/internal/diagram"
	"code2diagram/internal/handlers"
	u "code2diagram/internal/utils"
)

var extLanguages = map[string]diagram.Language{
	".py":    diagram.LangPython,
	".js":    diagram.LangJavaScript,
	".mjs":   diagram.LangJavaScript,
	".jsx":   diagram.LangJavaScript,
	".ts":    diagram.LangTypeScript,
	".tsx":   diagram.LangTypeScript,
	".java":  diagram.LangJava,
	".cc":    diagram.LangCPP,
	".cpp":   diagram.LangCPP,
	".cxx":   diagram.LangCPP,
	".hpp":   diagram.LangCPP,
	".h":     diagram.LangCPP,
	".cs":    diagram.LangCSharp,
	".go":    diagram.LangGo,
	".rb":    diagram.LangRuby,
	".php":   diagram.LangPHP,
	".swift": diagram.LangSwift,
	".kt":    diagram.LangKotlin,
	".kts":   diagram.LangKotlin,
	".rs":    diagram.LangRust,
}

func readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), errors.Wrap(err, "read stdin")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	return string(b), nil
}

func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// GenerateCmd asks the model for a diagram of one source file.
type GenerateCmd struct {
	File     string `arg:"" help:"Source file, or - for stdin"`
	Language string `short:"l" help:"Source language; inferred from the file extension when omitted"`
	Type     string `short:"t" default:"class" help:"Diagram type"`
	Output   string `short:"o" help:"Write the Mermaid text here instead of stdout"`
}

func (c *GenerateCmd) Run(g *Globals) error {
	code, err := readInput(c.File)
	if err != nil {
		return err
	}
	if strings.TrimSpace(code) == "" {
		return errors.New("source is empty")
	}
	if limit := g.Config.Generator.MaxCodeChars; limit > 0 && len([]rune(code)) > limit {
		return errors.Errorf("source exceeds %d characters", limit)
	}

	langName := c.Language
	if langName == "" {
		l, ok := extLanguages[strings.ToLower(filepath.Ext(c.File))]
		if !ok {
			return errors.Errorf("cannot infer language of %s; pass --language", c.File)
		}
		langName = string(l)
	}
	lang, err := diagram.ParseLanguage(langName)
	if err != nil {
		return err
	}
	kind, err := diagram.ParseKind(c.Type)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	out, err := newGenerator(g.Config).Generate(ctx, diagram.Request{Code: code, Language: lang, Kind: kind})
	if err != nil {
		return errors.New(diagram.PublicMessage(err, !g.Config.Production()))
	}
	return writeOutput(c.Output, g.Out, []byte(out+"\n"))
}

// ExportCmd renders a Mermaid file.
type ExportCmd struct {
	File   string `arg:"" help:"Mermaid file, or - for stdin"`
	Format string `short:"f" help:"svg, png or pdf; taken from --output's extension when omitted"`
	Output string `short:"o" help:"Destination file, or - for stdout (default diagram.<ext>)"`
}

func (c *ExportCmd) Run(g *Globals) error {
	source, err := readInput(c.File)
	if err != nil {
		return err
	}
	if limit := g.Config.Export.MaxSourceChars; limit > 0 && len([]rune(source)) > limit {
		return errors.Errorf("diagram exceeds %d characters", limit)
	}

	formatName := c.Format
	if formatName == "" {
		formatName = strings.TrimPrefix(strings.ToLower(filepath.Ext(c.Output)), ".")
	}
	if formatName == "" {
		formatName = string(diagram.FormatSVG)
	}
	format, err := diagram.ParseFormat(formatName)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	exp := newExporter(g.Config)
	art, err := exp.Export(ctx, source, format)
	if err != nil {
		return errors.New(diagram.PublicMessage(err, !g.Config.Production()))
	}

	dest := c.Output
	if dest == "" {
		dest = art.Filename()
	}
	if err := writeOutput(dest, g.Out, art.Data); err != nil {
		return err
	}
	if dest != "-" {
		u.Info("Diagram written", "path", dest, "bytes", len(art.Data))
	}
	return nil
}

// CatalogCmd prints the supported values as tables.
type CatalogCmd struct{}

func (c *CatalogCmd) Run(g *Globals) error {
	sections := []struct {
		title string
		rows  []handlers.CatalogEntry
	}{
		{"Diagram types", handlers.DiagramTypeCatalog()},
		{"Languages", handlers.LanguageCatalog()},
		{"Export formats", handlers.FormatCatalog()},
	}
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(g.Out)
		}
		fmt.Fprintln(g.Out, s.title)
		table := tablewriter.NewTable(g.Out)
		table.Header("Value", "Label", "Description")
		for _, e := range s.rows {
			desc := e.Description
			if e.MimeType != "" {
				desc = fmt.Sprintf("%s (%s)", desc, e.MimeType)
			}
			if err := table.Append(e.Value, e.Label, desc); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	return nil
}
