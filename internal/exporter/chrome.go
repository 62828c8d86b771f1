package exporter

import (
	"context"
	"fmt"
	"html"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"

	"code2diagram/internal/diagram"
)

// ChromeRenderer renders Mermaid in headless Chrome through chromedp instead of
// the Mermaid CLI. Each call starts its own browser with a throwaway profile.
type ChromeRenderer struct {
	ExecPath     string
	NoSandbox    bool
	MermaidJSURL string
	Theme        string
}

const mermaidPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>html,body{margin:0;background:transparent}</style></head>
<body><pre class="mermaid" id="diagram">%s</pre>
<script type="module">
import mermaid from %q;
mermaid.initialize({ startOnLoad: false, theme: %q });
try {
  await mermaid.run({ querySelector: '#diagram' });
  document.body.setAttribute('data-rendered', 'ok');
} catch (e) {
  document.body.setAttribute('data-error', String(e && e.message || e));
  document.body.setAttribute('data-rendered', 'error');
}
</script></body></html>`

// Render loads input into a blank tab, waits for Mermaid to finish and writes
// the requested format to output.
func (r *ChromeRenderer) Render(ctx context.Context, input, output string, format diagram.Format) error {
	source, err := os.ReadFile(input)
	if err != nil {
		return diagram.NewError(diagram.ClassRenderIO, "", errors.Wrap(err, "read render input"))
	}

	profileDir, err := os.MkdirTemp("", "code2diagram-chrome-*")
	if err != nil {
		return diagram.NewError(diagram.ClassRenderIO, "", errors.Wrap(err, "create chrome profile dir"))
	}
	defer os.RemoveAll(profileDir)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		// Software rendering keeps minimal containers away from GPU code paths.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}
	if r.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	theme := r.Theme
	if theme == "" {
		theme = "neutral"
	}
	doc := fmt.Sprintf(mermaidPage, html.EscapeString(string(source)), r.MermaidJSURL, theme)

	data, err := renderInTab(tabCtx, doc, format)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return diagram.NewError(diagram.ClassTimeout, "", err)
		}
		return diagram.NewError(diagram.ClassRenderProcess, "", errors.Wrap(err, "chrome render failed"))
	}
	if err := os.WriteFile(output, data, 0o600); err != nil {
		return diagram.NewError(diagram.ClassRenderIO, "", errors.Wrap(err, "write render output"))
	}
	return nil
}

// renderInTab drives an existing chromedp tab through the Mermaid page.
func renderInTab(ctx context.Context, doc string, format diagram.Format) ([]byte, error) {
	var out []byte
	var svg, state, renderErr string
	var found bool

	actions := []chromedp.Action{
		emulation.SetDefaultBackgroundColorOverride().WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: 0}),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frame, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frame.Frame.ID, doc).Do(ctx)
		}),
		chromedp.WaitReady("body[data-rendered]", chromedp.ByQuery),
		chromedp.AttributeValue("body", "data-rendered", &state, &found, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if state == "ok" {
				return nil
			}
			_ = chromedp.AttributeValue("body", "data-error", &renderErr, &found, chromedp.ByQuery).Do(ctx)
			return fmt.Errorf("mermaid: %s", renderErr)
		}),
		// Give web fonts a moment to settle before capture.
		chromedp.Sleep(100 * time.Millisecond),
	}

	switch format {
	case diagram.FormatSVG:
		actions = append(actions, chromedp.OuterHTML("#diagram svg", &svg, chromedp.ByQuery))
	case diagram.FormatPNG:
		actions = append(actions, chromedp.Screenshot("#diagram svg", &out, chromedp.ByQuery))
	case diagram.FormatPDF:
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			out, _, err = page.PrintToPDF().WithPrintBackground(false).Do(ctx)
			return err
		}))
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	if err := chromedp.Run(ctx, actions...); err != nil {
		return nil, err
	}
	if format == diagram.FormatSVG {
		out = []byte(svg)
	}
	return out, nil
}
