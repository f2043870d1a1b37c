package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/SFZPL/lead-automation-system-sub000/pkg/perplexity"
)

const profileQueryPrompt = `Find the professional profile page (linkedin.com/in/...) for: %s
List every matching profile URL you find, one per line. If none exist, answer "none".`

const generalQueryPrompt = `Research the following and summarize what you find, citing source URLs inline: %s`

var answerURLRe = regexp.MustCompile(`https?://[^\s"'<>\)\]]+`)

// PerplexityEngine backs the fan-out with a grounded Perplexity answer:
// URLs come from the answer text and its search grounding, snippets from
// the answer lines that mention them. Key-gated.
type PerplexityEngine struct {
	client perplexity.Client
	model  string
}

// NewPerplexityEngine wraps an existing Perplexity client.
func NewPerplexityEngine(client perplexity.Client, model string) *PerplexityEngine {
	return &PerplexityEngine{client: client, model: model}
}

func (e *PerplexityEngine) Name() string { return "perplexity" }

func (e *PerplexityEngine) Search(ctx context.Context, query string, mode Mode) ([]Candidate, error) {
	prompt := generalQueryPrompt
	if mode == ModeProfileURL {
		prompt = profileQueryPrompt
	}

	temp := 0.2
	resp, err := e.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: e.model,
		Messages: []perplexity.Message{
			{Role: "user", Content: fmt.Sprintf(prompt, query)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	out := e.fromAnswer(resp.Answer())
	for _, sr := range resp.SearchResults {
		out = append(out, Candidate{Title: sr.Title, URL: sr.URL, Engine: e.Name()})
	}
	for _, cite := range resp.Citations {
		out = append(out, Candidate{URL: cite, Engine: e.Name()})
	}

	if mode == ModeProfileURL {
		out = keepProfiles(out)
	}
	return dedupByURL(out), nil
}

// fromAnswer pulls URLs out of the answer text, attaching the surrounding
// line as the snippet. Answer-derived candidates come first so dedup keeps
// their snippets over the bare grounding URLs.
func (e *PerplexityEngine) fromAnswer(answer string) []Candidate {
	var out []Candidate
	for _, line := range strings.Split(answer, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, raw := range answerURLRe.FindAllString(trimmed, -1) {
			out = append(out, Candidate{
				URL:     strings.TrimRight(raw, ".,;"),
				Snippet: trimmed,
				Engine:  e.Name(),
			})
		}
	}
	return out
}
