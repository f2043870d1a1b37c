package fetch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFetcher implements Fetcher for testing.
type mockFetcher struct {
	name     string
	supports bool
	page     *Page
	err      error
	calls    atomic.Int32
}

func (m *mockFetcher) Name() string           { return m.name }
func (m *mockFetcher) Supports(_ string) bool { return m.supports }
func (m *mockFetcher) Fetch(_ context.Context, _ string) (*Page, error) {
	m.calls.Add(1)
	return m.page, m.err
}

func TestChain_Fetch_FirstSuccess(t *testing.T) {
	f1 := &mockFetcher{
		name: "primary", supports: true,
		page: &Page{URL: "https://acme.com", Title: "Home", Text: "content", Source: "primary"},
	}
	f2 := &mockFetcher{name: "fallback", supports: true}

	chain := NewChain(nil, f1, f2)
	page, err := chain.Fetch(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "primary", page.Source)
	assert.Equal(t, "https://acme.com", page.URL)
	assert.Equal(t, int32(0), f2.calls.Load())
}

func TestChain_Fetch_FallbackOnError(t *testing.T) {
	f1 := &mockFetcher{name: "primary", supports: true, err: errors.New("failed")}
	f2 := &mockFetcher{
		name: "fallback", supports: true,
		page: &Page{URL: "https://acme.com", Title: "Home", Source: "fallback"},
	}

	chain := NewChain(nil, f1, f2)
	page, err := chain.Fetch(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "fallback", page.Source)
}

func TestChain_Fetch_AllFail(t *testing.T) {
	f1 := &mockFetcher{name: "f1", supports: true, err: errors.New("f1 error")}
	f2 := &mockFetcher{name: "f2", supports: true, err: errors.New("f2 error")}

	chain := NewChain(nil, f1, f2)
	page, err := chain.Fetch(context.Background(), "https://acme.com")

	assert.Error(t, err)
	assert.Nil(t, page)
	assert.Contains(t, err.Error(), "all fetchers failed")
}

func TestChain_Fetch_FilteredURL(t *testing.T) {
	f1 := &mockFetcher{name: "f1", supports: true}

	chain := NewChain(NewURLFilter([]string{"/blog/*"}), f1)
	page, err := chain.Fetch(context.Background(), "https://acme.com/blog/post1")

	assert.Error(t, err)
	assert.Nil(t, page)
	assert.Contains(t, err.Error(), "skipped")
	assert.Equal(t, int32(0), f1.calls.Load())
}

func TestChain_Fetch_SkipsUnsupported(t *testing.T) {
	f1 := &mockFetcher{name: "f1", supports: false}
	f2 := &mockFetcher{
		name: "f2", supports: true,
		page: &Page{URL: "https://acme.com", Source: "f2"},
	}

	chain := NewChain(nil, f1, f2)
	page, err := chain.Fetch(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "f2", page.Source)
	assert.Equal(t, int32(0), f1.calls.Load())
}

func TestChain_Fetch_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f1 := &mockFetcher{name: "f1", supports: true, err: context.Canceled}
	f2 := &mockFetcher{name: "f2", supports: true, err: errors.New("should not run")}

	chain := NewChain(nil, f1, f2)
	_, err := chain.Fetch(ctx, "https://acme.com")

	assert.Error(t, err)
	assert.Equal(t, int32(1), f1.calls.Load())
	assert.Equal(t, int32(0), f2.calls.Load())
}

func TestChain_FetchAll(t *testing.T) {
	f1 := &mockFetcher{
		name: "f1", supports: true,
		page: &Page{URL: "fetched", Text: "content", Source: "f1"},
	}

	chain := NewChain(nil, f1)
	urls := []string{
		"https://acme.com/about",
		"https://acme.com/services",
		"https://acme.com/blog/post", // excluded by default patterns
	}

	pages := chain.FetchAll(context.Background(), urls, 5)

	assert.Len(t, pages, 2)
}

func TestChain_FetchAll_Empty(t *testing.T) {
	f1 := &mockFetcher{name: "f1", supports: true, err: errors.New("fail")}

	chain := NewChain(nil, f1)
	pages := chain.FetchAll(context.Background(), []string{"https://acme.com"}, 5)

	assert.Len(t, pages, 0)
}

func TestPage_Empty(t *testing.T) {
	var nilPage *Page
	assert.True(t, nilPage.Empty())
	assert.True(t, (&Page{Text: "  \n"}).Empty())
	assert.False(t, (&Page{Text: "content"}).Empty())
}
