// Package search fans one query out across multiple web search engines and
// returns the merged candidate set. Engines are isolated: a failing or slow
// engine costs its own results, never the siblings', and an engine that
// keeps failing is benched for a cooldown instead of burning its timeout on
// every query.
package search

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/internal/resilience"
)

// Mode selects what the caller wants extracted from engine results.
type Mode int

const (
	// ModeGeneralInfo returns ordinary organic results.
	ModeGeneralInfo Mode = iota
	// ModeProfileURL returns only professional-network profile URLs.
	ModeProfileURL
)

func (m Mode) String() string {
	if m == ModeProfileURL {
		return "profile_url"
	}
	return "general_info"
}

// Candidate is one search hit from one engine.
type Candidate struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Engine  string `json:"engine"`
}

// Engine runs one query against one search backend.
type Engine interface {
	Search(ctx context.Context, query string, mode Mode) ([]Candidate, error)
	Name() string
}

const (
	defaultEngineTimeout = 12 * time.Second
	defaultJitter        = 500 * time.Millisecond
	defaultMaxCandidates = 10

	// An engine failing this many queries in a row sits out for the
	// cooldown. Blocks and rate limits outlive a single query, so probing
	// every time would just slow the batch down.
	breakerThreshold = 3
	breakerCooldown  = time.Minute
)

// Options tunes the fan-out client.
type Options struct {
	// EngineTimeout bounds each engine call independently so one slow
	// engine cannot stall the query.
	EngineTimeout time.Duration
	// Jitter is the maximum random stagger before each engine fires,
	// keeping the engines from hitting their backends in lockstep.
	// Negative disables the stagger.
	Jitter time.Duration
	// MaxCandidates caps the deduplicated result set. Negative means
	// unlimited.
	MaxCandidates int
}

// Client fans queries out across its engines.
type Client struct {
	engines  []Engine
	opts     Options
	breakers *resilience.BreakerSet
}

// NewClient builds a fan-out client over the given engines. Zero option
// fields fall back to defaults.
func NewClient(opts Options, engines ...Engine) *Client {
	if opts.EngineTimeout <= 0 {
		opts.EngineTimeout = defaultEngineTimeout
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	} else if opts.Jitter == 0 {
		opts.Jitter = defaultJitter
	}
	if opts.MaxCandidates == 0 {
		opts.MaxCandidates = defaultMaxCandidates
	}
	return &Client{
		engines: engines,
		opts:    opts,
		breakers: resilience.NewBreakerSet(resilience.BreakerConfig{
			Threshold: breakerThreshold,
			Cooldown:  breakerCooldown,
			// A canceled run says nothing about engine health.
			ShouldTrip: func(err error) bool { return !errors.Is(err, context.Canceled) },
		}),
	}
}

// Engines returns the names of the configured engines.
func (c *Client) Engines() []string {
	names := make([]string, len(c.engines))
	for i, e := range c.engines {
		names[i] = e.Name()
	}
	return names
}

// Search runs the query on every engine concurrently and returns the union,
// deduplicated by canonical URL. Engine-internal order is preserved; across
// engines the order follows engine registration, not relevance. A failing
// engine contributes an empty set and is logged at debug; once its breaker
// trips it is skipped until a later query probes it.
func (c *Client) Search(ctx context.Context, query string, mode Mode) []Candidate {
	query = strings.TrimSpace(query)
	if query == "" || len(c.engines) == 0 {
		return nil
	}

	results := make([][]Candidate, len(c.engines))
	var wg sync.WaitGroup
	for i, eng := range c.engines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					zap.L().Error("search: engine panicked",
						zap.String("engine", eng.Name()),
						zap.Any("panic", r))
				}
			}()

			br := c.breakers.Get(eng.Name())
			if br.Allow() != nil {
				zap.L().Debug("search: engine cooling down",
					zap.String("engine", eng.Name()))
				return
			}

			if d := c.stagger(); d > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(d):
				}
			}

			ectx, cancel := context.WithTimeout(ctx, c.opts.EngineTimeout)
			defer cancel()

			found, err := eng.Search(ectx, query, mode)
			br.Record(err)
			if err != nil {
				zap.L().Debug("search: engine failed",
					zap.String("engine", eng.Name()),
					zap.String("query", query),
					zap.Error(err))
				return
			}
			results[i] = found
		}()
	}
	wg.Wait()

	return c.collect(results)
}

// stagger returns a random delay in [0, Jitter).
func (c *Client) stagger() time.Duration {
	if c.opts.Jitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(c.opts.Jitter)))
}

// collect flattens per-engine results in registration order, dropping
// invalid URLs and canonical duplicates, then applies the candidate cap.
func (c *Client) collect(results [][]Candidate) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)
	for _, engineResults := range results {
		for _, cand := range engineResults {
			key := CanonicalURL(cand.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, cand)
			if c.opts.MaxCandidates > 0 && len(out) >= c.opts.MaxCandidates {
				return out
			}
		}
	}
	return out
}
