// Package enrich runs the per-lead adapter chain and the batch orchestrator.
// Four adapters fire in fixed order and produce sparse field bags that the
// merge rules fold into the record; the orchestrator fans leads out in
// batches and settles every lead exactly once.
package enrich

import (
	"context"
	"strings"

	"github.com/SFZPL/lead-automation-system-sub000/internal/fetch"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/internal/search"
)

// Adapter is one enrichment source. Enrich returns a sparse bag of findings;
// I/O failures are absorbed into an empty bag, so a returned error means the
// adapter itself misbehaved and the lead is failed.
type Adapter interface {
	Enrich(ctx context.Context, rec *model.LeadRecord) (model.FieldBag, error)
	Name() string
	Source() string
}

// PageFetcher is the slice of the fetch chain the adapters use.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// Searcher runs one query across the configured search engines.
type Searcher interface {
	Search(ctx context.Context, query string, mode search.Mode) []search.Candidate
}

// ProfileCache is the slice of the store the direct profile adapter needs.
// A nil cache disables caching, not the adapter.
type ProfileCache interface {
	// CachedProfile returns the cached payload for a handle, or nil when
	// absent or expired.
	CachedProfile(ctx context.Context, handle string) ([]byte, error)
	PutCachedProfile(ctx context.Context, handle string, payload []byte) error
}

// fold copies values from src into dst without overwriting anything dst
// already holds. Adapter-internal precedence only; cross-adapter precedence
// is the merge rules' job.
func fold(dst, src model.FieldBag) {
	for f, v := range src.Values {
		if dst.Values[f] == "" {
			dst.Set(f, v)
		}
	}
	for k, v := range src.Extras {
		if dst.Extras[k] == "" {
			dst.SetExtra(k, v)
		}
	}
}

// publicMailProviders are consumer mail domains that never identify the
// lead's company.
var publicMailProviders = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"ymail.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"live.com":       {},
	"msn.com":        {},
	"aol.com":        {},
	"icloud.com":     {},
	"me.com":         {},
	"mac.com":        {},
	"proton.me":      {},
	"protonmail.com": {},
	"mail.com":       {},
	"gmx.com":        {},
	"zoho.com":       {},
	"comcast.net":    {},
	"verizon.net":    {},
	"att.net":        {},
}

func isPublicMailProvider(domain string) bool {
	_, ok := publicMailProviders[strings.ToLower(strings.TrimSpace(domain))]
	return ok
}
