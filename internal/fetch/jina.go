package fetch

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/pkg/jina"
)

// breaker tracks consecutive failures to skip a flaky upstream.
type breaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	openUntil   time.Time
	threshold   int           // consecutive failures to trip
	window      time.Duration // failures must occur within this window
	cooldown    time.Duration // how long the circuit stays open
}

func newBreaker(threshold int, window, cooldown time.Duration) *breaker {
	return &breaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
	}
}

func (b *breaker) open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Now().Before(b.openUntil)
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if now.Sub(b.lastFailure) > b.window {
		b.failures = 0
	}
	b.failures++
	b.lastFailure = now
	if b.failures >= b.threshold {
		b.openUntil = now.Add(b.cooldown)
		zap.L().Warn("fetch: jina circuit breaker opened",
			zap.Int("failures", b.failures),
			zap.Duration("cooldown", b.cooldown),
		)
	}
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// JinaFetcher wraps a Jina Reader client as a Fetcher with a circuit breaker.
type JinaFetcher struct {
	client  jina.Client
	breaker *breaker
}

// NewJinaFetcher creates a JinaFetcher from a Jina client.
// Includes a circuit breaker: 3 consecutive failures within 30s opens
// the circuit for 60s, causing immediate fallback to the next fetcher.
func NewJinaFetcher(client jina.Client) *JinaFetcher {
	return &JinaFetcher{
		client:  client,
		breaker: newBreaker(3, 30*time.Second, 60*time.Second),
	}
}

func (j *JinaFetcher) Name() string { return "jina" }

// Supports returns true unless the circuit breaker is open.
func (j *JinaFetcher) Supports(_ string) bool {
	return !j.breaker.open()
}

// Fetch reads a URL via Jina Reader and validates the content.
func (j *JinaFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if j.breaker.open() {
		return nil, eris.New("jina: circuit breaker open")
	}

	res, err := j.client.Read(ctx, targetURL)
	if err != nil {
		j.breaker.failure()
		return nil, err
	}

	if thinContent(res) {
		j.breaker.failure()
		return nil, eris.New("jina: response needs fallback")
	}

	j.breaker.success()
	pageURL := res.URL
	if pageURL == "" {
		pageURL = targetURL
	}
	return &Page{
		URL:        pageURL,
		Title:      res.Title,
		Text:       res.Content,
		Source:     "jina",
		StatusCode: http.StatusOK,
	}, nil
}

// thinContent reports whether a Reader result is too small to extract from,
// or is a bot-challenge page that slipped through with a 200.
func thinContent(res *jina.ReadResult) bool {
	if res == nil {
		return true
	}

	content := strings.TrimSpace(res.Content)
	if len(content) < 100 {
		return true
	}

	lower := strings.ToLower(content)

	challengeSignatures := []string{
		"checking your browser",
		"enable javascript",
		"please enable cookies",
		"access denied",
		"403 forbidden",
		"just a moment",
		"cloudflare",
		"attention required",
		"authwall",
	}

	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}

	return false
}
