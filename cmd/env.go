package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/internal/crmmap"
	"github.com/SFZPL/lead-automation-system-sub000/internal/enrich"
	"github.com/SFZPL/lead-automation-system-sub000/internal/extract"
	"github.com/SFZPL/lead-automation-system-sub000/internal/fetch"
	"github.com/SFZPL/lead-automation-system-sub000/internal/search"
	"github.com/SFZPL/lead-automation-system-sub000/internal/store"
	anthropicpkg "github.com/SFZPL/lead-automation-system-sub000/pkg/anthropic"
	"github.com/SFZPL/lead-automation-system-sub000/pkg/apify"
	"github.com/SFZPL/lead-automation-system-sub000/pkg/firecrawl"
	"github.com/SFZPL/lead-automation-system-sub000/pkg/jina"
	"github.com/SFZPL/lead-automation-system-sub000/pkg/notion"
	"github.com/SFZPL/lead-automation-system-sub000/pkg/perplexity"
	sfpkg "github.com/SFZPL/lead-automation-system-sub000/pkg/salesforce"
)

// enrichEnv bundles the store, the adapter engine, and the optional outbound
// clients shared by the enrich, batch, import, and serve commands. Salesforce
// and Notion stay nil when their credentials are absent; callers check before
// use.
type enrichEnv struct {
	Store      store.Store
	Engine     *enrich.Engine
	Salesforce sfpkg.Client
	Notion     notion.Client
	Mapping    *crmmap.Config
}

// Close releases the store.
func (e *enrichEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close() //nolint:errcheck
	}
}

// initEnv validates config for the given mode, opens and migrates the store,
// loads the CRM field mapping, and wires the adapter chain. On error nothing
// is left open.
func initEnv(ctx context.Context, mode string) (*enrichEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	mapping, err := crmmap.Load(cfg.CRM.MappingPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	env := &enrichEnv{Store: st, Mapping: mapping}

	if cfg.Salesforce.ClientID != "" {
		sf, sfErr := initSalesforce()
		if sfErr != nil {
			_ = st.Close()
			return nil, sfErr
		}
		env.Salesforce = sf
	}

	if cfg.Notion.Token != "" && cfg.Notion.ReviewDB != "" {
		env.Notion = notion.NewClient(cfg.Notion.Token)
	}

	env.Engine = buildEngine(st)
	return env, nil
}

// buildEngine wires the fetch chain, the search fan-out, and the four
// adapters in their fixed order: website, direct profile, profile search,
// person search.
func buildEngine(st store.Store) *enrich.Engine {
	fetcher := buildFetchChain()
	searcher := buildSearchClient()

	var llm *extract.LLMExtractor
	if cfg.Anthropic.Key != "" {
		llm = extract.NewLLMExtractor(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	} else {
		zap.L().Info("anthropic key not set, website extraction is heuristic only")
	}

	var scraper apify.Client
	if cfg.Apify.Token != "" {
		opts := []apify.Option{apify.WithTimeout(time.Duration(cfg.Apify.TimeoutSecs) * time.Second)}
		if cfg.Apify.Actor != "" {
			opts = append(opts, apify.WithActor(cfg.Apify.Actor))
		}
		scraper = apify.NewClient(cfg.Apify.Token, opts...)
	}

	cache := store.ProfileCache{Store: st, TTL: cfg.Enrich.ProfileCacheTTL()}
	direct := enrich.NewLinkedInAdapter(scraper, cache)

	return enrich.NewEngine(cfg.Enrich.LinkedInSearchPolicy,
		enrich.NewWebsiteAdapter(fetcher, llm),
		direct,
		enrich.NewLinkedInSearchAdapter(searcher, direct),
		enrich.NewPersonSearchAdapter(searcher, fetcher),
	)
}

// buildFetchChain assembles local-first fetching with reader-service
// fallbacks for blocked or thin pages. Keyless services are left out of the
// chain.
func buildFetchChain() *fetch.Chain {
	fetchers := []fetch.Fetcher{
		fetch.NewLocalFetcher(fetch.LocalOptions{
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   cfg.Fetch.Timeout(),
			MaxBody:   int64(cfg.Fetch.MaxBodyMB) << 20,
		}),
	}
	if cfg.Jina.Key != "" {
		fetchers = append(fetchers, fetch.NewJinaFetcher(
			jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL)),
		))
	}
	if cfg.Firecrawl.Key != "" {
		fetchers = append(fetchers, fetch.NewFirecrawlFetcher(
			firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL)),
		))
	}
	return fetch.NewChain(fetch.NewURLFilter(nil), fetchers...)
}

// buildSearchClient turns search.engines into the fan-out client. An
// unknown or unconfigured engine name costs one engine, not the run.
func buildSearchClient() *search.Client {
	var engines []search.Engine
	for _, name := range cfg.Search.Engines {
		switch name {
		case "duckduckgo":
			engines = append(engines, search.NewDuckDuckGo())
		case "bing":
			engines = append(engines, search.NewBing())
		case "brave":
			engines = append(engines, search.NewBrave())
		case "jina":
			if cfg.Jina.Key == "" {
				zap.L().Warn("search: jina engine needs jina.key, skipping")
				continue
			}
			jc := jina.NewClient(cfg.Jina.Key,
				jina.WithBaseURL(cfg.Jina.BaseURL),
				jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL),
			)
			engines = append(engines, search.NewJinaEngine(jc))
		case "perplexity":
			if cfg.Perplexity.Key == "" {
				zap.L().Warn("search: perplexity engine needs perplexity.key, skipping")
				continue
			}
			pc := perplexity.NewClient(cfg.Perplexity.Key,
				perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
				perplexity.WithModel(cfg.Perplexity.Model),
			)
			engines = append(engines, search.NewPerplexityEngine(pc, cfg.Perplexity.Model))
		default:
			zap.L().Warn("search: unknown engine, skipping", zap.String("engine", name))
		}
	}
	return search.NewClient(search.Options{
		EngineTimeout: cfg.Search.EngineTimeout(),
		Jitter:        cfg.Search.Jitter(),
		MaxCandidates: cfg.Search.MaxCandidates,
	}, engines...)
}
