// Package source contains the adapters that extract raw rows from the
// municipal website. Each adapter returns an unordered list of opaque
// field maps or a fetch error; validation happens later in normalize.
//
// An extraction that yields zero rows is reported as a fetch error: the
// site publishing nothing and the site having changed its markup are
// indistinguishable here, and the original cron scripts refused to sync
// in that situation rather than wipe the downstream stores.
package source

import (
	"context"
	"net/http"
	"time"

	"obecsync/internal/record"
)

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// Static serves a fixed set of rows. Used for the folder stage of the
// documents job, whose folder list comes from configuration rather than
// the site.
type Static struct {
	Rows []record.Raw
}

func (s Static) Fetch(ctx context.Context) ([]record.Raw, error) {
	rows := make([]record.Raw, len(s.Rows))
	copy(rows, s.Rows)
	return rows, nil
}
