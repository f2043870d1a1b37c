package search

import (
	"context"

	"github.com/SFZPL/lead-automation-system-sub000/pkg/jina"
)

// JinaEngine backs the fan-out with the Jina search API. Key-gated; only
// wired when a key is configured.
type JinaEngine struct {
	client jina.Client
}

// NewJinaEngine wraps an existing Jina client.
func NewJinaEngine(client jina.Client) *JinaEngine {
	return &JinaEngine{client: client}
}

func (e *JinaEngine) Name() string { return "jina" }

func (e *JinaEngine) Search(ctx context.Context, query string, mode Mode) ([]Candidate, error) {
	var opts []jina.SearchOption
	if mode == ModeProfileURL {
		opts = append(opts, jina.WithSiteFilter("linkedin.com"))
	}

	results, err := e.client.Search(ctx, query, opts...)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(results))
	for _, r := range results {
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		out = append(out, Candidate{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: snippet,
			Engine:  e.Name(),
		})
	}
	if mode == ModeProfileURL {
		out = keepProfiles(out)
	}
	return dedupByURL(out), nil
}
