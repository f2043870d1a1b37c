package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/internal/fetch"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/pkg/anthropic"
)

// maxPageContent caps how much page text goes into one extraction prompt.
const maxPageContent = 8000

const extractSystemText = "You are a research analyst extracting lead and company data from web pages. Return valid JSON matching the requested schema. Use an empty string for fields not found. Never invent values."

const extractPrompt = `Extract lead and company information from the following web page.
Return a valid JSON object with these fields:
- full_name: string (the person's name, only if this page identifies them)
- job_title: string
- company_name: string
- industry: string
- company_size: string (e.g. "51-200" or "1000+")
- founded_year: string (year)
- phone: string
- location: string (e.g. "Austin, TX")
- website: string
- professional_profile_url: string

If a field cannot be determined, use an empty string. Only report values the
page actually states.

Lead being researched:
%s

Page URL: %s
Page content:
%s`

// LLMExtractor pulls structured lead fields from page text with a single
// model call. Any failure degrades to an empty bag; heuristics already ran,
// so a dropped extraction loses refinement, not the lead.
type LLMExtractor struct {
	client anthropic.Client
	model  string
}

// NewLLMExtractor returns an extractor bound to a model ID.
func NewLLMExtractor(client anthropic.Client, model string) *LLMExtractor {
	return &LLMExtractor{client: client, model: model}
}

// Configured reports whether the extractor has a usable client.
func (e *LLMExtractor) Configured() bool {
	return e != nil && e.client != nil
}

// Extract runs one completion over the page and maps the answer into a bag.
func (e *LLMExtractor) Extract(ctx context.Context, page *fetch.Page, lead *model.LeadRecord) model.FieldBag {
	bag := model.NewFieldBag()
	if !e.Configured() || page == nil || page.Empty() {
		return bag
	}

	hint := leadHint(lead)
	content := truncateByRelevance(page.Text, hint, maxPageContent)

	temp := 0.0
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   1024,
		System:      anthropic.BuildCachedSystemBlocks(extractSystemText),
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(extractPrompt, hint, page.URL, content)},
		},
	})
	if err != nil {
		zap.L().Warn("extract: model call failed",
			zap.String("url", page.URL),
			zap.Error(err))
		return bag
	}
	resp.Usage.LogCost(e.model, "extract")

	var fields map[string]string
	if err := json.Unmarshal([]byte(cleanJSON(resp.FirstText())), &fields); err != nil {
		zap.L().Warn("extract: failed to parse model json",
			zap.String("url", page.URL),
			zap.Error(err))
		return bag
	}

	for name, value := range fields {
		name = strings.ToLower(strings.TrimSpace(name))
		if !model.KnownField(name) {
			continue
		}
		bag.Set(model.Field(name), value)
	}
	return bag
}

// leadHint renders the lead's known identity for the prompt so the model
// extracts data about the right person and company.
func leadHint(lead *model.LeadRecord) string {
	if lead == nil {
		return "(unknown)"
	}
	var parts []string
	if lead.FullName != "" {
		parts = append(parts, "Name: "+lead.FullName)
	}
	if lead.CompanyName != "" {
		parts = append(parts, "Company: "+lead.CompanyName)
	}
	if domain := lead.EmailDomain(); domain != "" {
		parts = append(parts, "Email domain: "+domain)
	}
	if lead.JobTitle != "" {
		parts = append(parts, "Known title: "+lead.JobTitle)
	}
	if len(parts) == 0 {
		return "(unknown)"
	}
	return strings.Join(parts, "\n")
}

// truncateByRelevance performs keyword-aware content truncation. Instead of
// blindly cutting at a character limit, it splits content into sections,
// scores each by keyword overlap with the lead hint, and keeps the
// highest-scoring sections within the limit. Falls back to a hard cut when
// the content has no meaningful sections.
func truncateByRelevance(content, hint string, limit int) string {
	if len(content) <= limit {
		return content
	}

	keywords := extractKeywords(hint)
	if len(keywords) == 0 {
		return content[:limit]
	}

	sections := splitSections(content)
	if len(sections) <= 1 {
		return content[:limit]
	}

	type scoredSection struct {
		idx   int
		text  string
		score int
	}
	scored := make([]scoredSection, len(sections))
	for i, sec := range sections {
		lower := strings.ToLower(sec)
		score := 0
		for _, kw := range keywords {
			score += strings.Count(lower, kw)
		}
		scored[i] = scoredSection{idx: i, text: sec, score: score}
	}

	// Sort by score descending (insertion sort; section count is small).
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].score > scored[j-1].score; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}

	selected := make(map[int]bool)
	totalLen := 0
	for _, s := range scored {
		if totalLen+len(s.text) > limit {
			continue
		}
		selected[s.idx] = true
		totalLen += len(s.text)
	}
	if len(selected) == 0 {
		return content[:limit]
	}

	// Reassemble selected sections in their original order.
	var result strings.Builder
	for i, sec := range sections {
		if selected[i] {
			if result.Len() > 0 {
				result.WriteString("\n\n")
			}
			result.WriteString(sec)
		}
	}
	return result.String()
}

// extractKeywords returns lowercase words of 3+ characters from text,
// excluding common stop words.
func extractKeywords(text string) []string {
	stopWords := map[string]bool{
		"the": true, "and": true, "for": true, "are": true, "was": true,
		"were": true, "been": true, "have": true, "has": true, "had": true,
		"this": true, "that": true, "with": true, "from": true, "name": true,
		"company": true, "email": true, "domain": true, "known": true,
		"title": true, "unknown": true,
	}

	words := strings.Fields(strings.ToLower(text))
	var keywords []string
	seen := make(map[string]bool)
	for _, w := range words {
		w = strings.Trim(w, "?.,!;:'\"()[]{}")
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
	}
	return keywords
}

// splitSections splits page text into sections by markdown headers or
// double-newline paragraph breaks.
func splitSections(content string) []string {
	var sections []string
	var current strings.Builder

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "#") || (line == "" && current.Len() > 0) {
			if current.Len() > 0 {
				sections = append(sections, strings.TrimSpace(current.String()))
				current.Reset()
			}
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		if s := strings.TrimSpace(current.String()); s != "" {
			sections = append(sections, s)
		}
	}

	filtered := sections[:0]
	for _, s := range sections {
		if s != "" {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or prose wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
