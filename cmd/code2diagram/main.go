package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"code2diagram/internal/exporter"
	"code2diagram/internal/generator"
	u "code2diagram/internal/utils"
)

var version = "dev"

// Globals is passed to every command's Run method.
type Globals struct {
	Config u.Config
	Out    io.Writer
}

// CLI is the root command line.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" env:"CONFIG_PATH" default:"config.yaml"`
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve    ServeCmd    `cmd:"" default:"1" help:"Run the HTTP API (default)"`
	Generate GenerateCmd `cmd:"" help:"Generate a Mermaid diagram from a source file"`
	Export   ExportCmd   `cmd:"" help:"Render a Mermaid file to SVG, PNG or PDF"`
	Catalog  CatalogCmd  `cmd:"" help:"List diagram types, languages and export formats"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run parses args and executes the selected command.
func run(args []string, stdout, stderr io.Writer, opts ...kong.Option) error {
	var cli CLI
	opts = append([]kong.Option{
		kong.Name("code2diagram"),
		kong.Description("Turn source code into Mermaid diagrams and render them."),
		kong.Vars{"version": version},
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
	}, opts...)

	parser, err := kong.New(&cli, opts...)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg := u.LoadConfigFrom(cli.Config)
	level := cfg.Logger.Level
	if cli.Verbose {
		level = "debug"
	}
	if kctx.Command() == "serve" {
		u.InitLogger(cfg.Logger.File, cfg.Logger.MaxSizeMB, cfg.Logger.MaxBackups, cfg.Logger.MaxAgeDays, cfg.Logger.Compress, level)
	} else {
		u.InitConsoleLogger(stderr, level)
	}

	return kctx.Run(&Globals{Config: cfg, Out: stdout})
}

func newGenerator(cfg u.Config) *generator.Generator {
	return generator.New(generator.Config{
		APIKey:  cfg.Generator.APIKey,
		BaseURL: cfg.Generator.BaseURL,
		Model:   cfg.Generator.Model,
		Timeout: cfg.Generator.Timeout,
	})
}

func newRenderer(cfg u.Config) exporter.Renderer {
	if cfg.Export.Engine == "chrome" {
		return &exporter.ChromeRenderer{
			ExecPath:     cfg.Export.ChromePath,
			NoSandbox:    cfg.Export.ChromeNoSand,
			MermaidJSURL: cfg.Export.MermaidJSURL,
			Theme:        cfg.Export.Theme,
		}
	}
	r := exporter.NewCLIRenderer(cfg.Export.Command, cfg.Export.CommandArgs...)
	r.Theme = cfg.Export.Theme
	r.Background = cfg.Export.Background
	r.PuppeteerConfig = cfg.Export.PuppeteerConf
	return r
}

func newExporter(cfg u.Config) *exporter.Exporter {
	return exporter.New(exporter.NewStaging(cfg.Export.StagingDir), newRenderer(cfg), cfg.Export.Timeout)
}
