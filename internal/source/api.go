package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"obecsync/internal/record"
)

// ParserFunc splits one API content payload into raw rows. Parsers fail
// when they match nothing: the API format has most likely changed and no
// update must happen in that case.
type ParserFunc func(content string) ([]record.Raw, error)

// API fetches a content payload from the municipal JSON API. Responses
// wrap the markdown-ish page text in a {"content": "..."} envelope.
type API struct {
	URL    string
	Parser ParserFunc
	Client *http.Client
}

func (a API) Fetch(ctx context.Context) ([]record.Raw, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := httpClient(a.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", a.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", a.URL, resp.StatusCode)
	}

	var envelope struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode %s: %w", a.URL, err)
	}

	rows, err := a.Parser(envelope.Content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", a.URL, err)
	}
	return rows, nil
}
