package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SFZPL/lead-automation-system-sub000/internal/config"
)

// minimalConfig passes Validate for the credential-free modes.
func minimalConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "env.db"),
		},
		Enrich: config.EnrichConfig{
			BatchSize:            5,
			LeadTimeoutSecs:      120,
			LinkedInSearchPolicy: config.PolicySkipOnDirect,
		},
		Search: config.SearchConfig{
			Engines:           []string{"duckduckgo"},
			EngineTimeoutSecs: 10,
		},
	}
}

func TestInitEnv_CredentialFreeEnrich(t *testing.T) {
	cfg = minimalConfig(t)

	env, err := initEnv(context.Background(), "enrich")
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Store)
	assert.NotNil(t, env.Engine)
	assert.NotNil(t, env.Mapping)
	assert.Nil(t, env.Salesforce, "salesforce stays nil without credentials")
	assert.Nil(t, env.Notion, "notion stays nil without credentials")
}

func TestInitEnv_RejectsInvalidConfig(t *testing.T) {
	cfg = minimalConfig(t)
	cfg.Enrich.BatchSize = 0

	env, err := initEnv(context.Background(), "enrich")
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestInitEnv_BatchModeNeedsSalesforce(t *testing.T) {
	cfg = minimalConfig(t)

	env, err := initEnv(context.Background(), "batch")
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf.client_id")
}

func TestBuildSearchClient_SkipsUnknownAndUnkeyedEngines(t *testing.T) {
	cfg = minimalConfig(t)
	cfg.Search.Engines = []string{"duckduckgo", "bing", "brave", "jina", "perplexity", "altavista"}

	c := buildSearchClient()
	assert.ElementsMatch(t, []string{"duckduckgo", "bing", "brave"}, c.Engines(),
		"keyless jina/perplexity and unknown names are dropped")
}

func TestBuildSearchClient_KeyedEngines(t *testing.T) {
	cfg = minimalConfig(t)
	cfg.Search.Engines = []string{"jina", "perplexity"}
	cfg.Jina = config.JinaConfig{Key: "jk"}
	cfg.Perplexity = config.PerplexityConfig{Key: "pk", Model: "sonar"}

	c := buildSearchClient()
	assert.ElementsMatch(t, []string{"jina", "perplexity"}, c.Engines())
}
