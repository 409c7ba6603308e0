package proposal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gmeppo/eppo-proposals/internal/obs"
)

// PDFExporter turns an HTML document into PDF bytes.
type PDFExporter interface {
	PDF(ctx context.Context, html []byte) ([]byte, error)
}

var chromeCandidates = []string{
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/snap/bin/chromium",
}

// ChromePDF prints HTML through a headless Chrome started per call.
type ChromePDF struct {
	ExecPath string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// DetectChrome returns path when it exists, otherwise the first installed
// browser from the usual locations. Empty means let chromedp look it up.
func DetectChrome(path string) string {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, candidate := range chromeCandidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// PDF renders html to an A4 PDF.
func (c ChromePDF) PDF(ctx context.Context, html []byte) (out []byte, err error) {
	if len(html) == 0 {
		return nil, errors.New("pdf: empty document")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, span := obs.StartSpan(ctx, "proposal.pdf", attribute.Int("html.bytes", len(html)))
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			if errors.Is(err, context.DeadlineExceeded) {
				result = "timeout"
			}
		}
		obs.RecordProposalPDF(result, obs.DurationMillis(time.Since(start)))
		obs.EndSpan(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.NoSandbox, chromedp.DisableGPU)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			// A4 in inches; margins come from the @page rule.
			out, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		c.Logger.Error().Err(err).Msg("chrome pdf export failed")
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return out, nil
}
