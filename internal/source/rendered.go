package source

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"obecsync/internal/record"
)

// extractRows collects every list item containing a link, mirroring what
// Listing does on static markup.
const extractRows = `[...document.querySelectorAll('li')]
	.filter(li => li.querySelector('a[href]'))
	.map(li => ({
		text: li.textContent.trim(),
		href: li.querySelector('a[href]').getAttribute('href'),
	}))`

// Rendered extracts anchor rows from pages that only materialize their
// listings client-side, by driving headless Chrome. Same row shape as
// Listing ("text", "href").
type Rendered struct {
	URL      string
	Contains string
	Timeout  time.Duration
}

func (r Rendered) Fetch(ctx context.Context) ([]record.Raw, error) {
	if _, err := exec.LookPath("chromium-browser"); err != nil {
		if _, fallbackErr := exec.LookPath("chromium"); fallbackErr != nil {
			return nil, fmt.Errorf("rendered source: chromium not installed")
		}
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var extracted []map[string]string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(r.URL),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(extractRows, &extracted),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", r.URL, err)
	}

	var rows []record.Raw
	for _, e := range extracted {
		text := strings.TrimSpace(e["text"])
		if r.Contains != "" && !strings.Contains(strings.ToLower(text), r.Contains) {
			continue
		}
		rows = append(rows, record.Raw{"text": text, "href": e["href"]})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows extracted from %s after rendering", r.URL)
	}
	return rows, nil
}
