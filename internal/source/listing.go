package source

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"obecsync/internal/record"
)

// Listing extracts anchor rows from a static HTML page: one raw row per
// list item that contains a link. Rows carry "text" (the item's visible
// text) and "href".
type Listing struct {
	URL string
	// Contains filters rows to those whose lowercased text includes the
	// given substring; empty keeps everything.
	Contains string
	// Probe issues a HEAD request per link and adds "name", "size" and
	// "mime" fields (document listings).
	Probe   bool
	BaseURL string
	Client  *http.Client
}

func (l Listing) Fetch(ctx context.Context) ([]record.Raw, error) {
	client := httpClient(l.Client)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", l.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", l.URL, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.URL, err)
	}

	var rows []record.Raw
	for _, item := range listItems(doc) {
		href, ok := firstAnchorHref(item)
		if !ok {
			continue
		}
		text := strings.TrimSpace(nodeText(item))
		if l.Contains != "" && !strings.Contains(strings.ToLower(text), l.Contains) {
			continue
		}
		row := record.Raw{"text": text, "href": href}
		if l.Probe {
			size, mime, err := l.probe(ctx, client, href)
			if err != nil {
				// A single unreachable document is skipped here and
				// surfaces as a missing row, not a failed fetch.
				continue
			}
			row["name"] = text
			row["size"] = strconv.FormatInt(size, 10)
			row["mime"] = mime
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows extracted from %s; page format has likely changed", l.URL)
	}
	return rows, nil
}

func (l Listing) probe(ctx context.Context, client *http.Client, href string) (int64, string, error) {
	url := href
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = strings.TrimSuffix(l.BaseURL, "/") + "/" + strings.TrimPrefix(url, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("head %s: status %d", url, resp.StatusCode)
	}
	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	return size, resp.Header.Get("Content-Type"), nil
}

func listItems(doc *html.Node) []*html.Node {
	var items []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "li" {
			items = append(items, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return items
}

func firstAnchorHref(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key == "href" && strings.TrimSpace(attr.Val) != "" {
				return strings.TrimSpace(attr.Val), true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href, ok := firstAnchorHref(c); ok {
			return href, true
		}
	}
	return "", false
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}
