// Package extract defines the narrow contracts between the pipeline and the
// external scraping/extraction providers, plus the caching and circuit-breaker
// decorators that sit in front of them.
package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/resilience"
)

// Page is rendered web content ready for extraction.
type Page struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Markdown string `json:"markdown"`
}

// ContentFetcher renders a URL into markdown.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// EntityExtractor turns a rendered page into a candidate truck record.
type EntityExtractor interface {
	Extract(ctx context.Context, page *Page) (*model.ExtractedTruck, error)
}

// ParseCandidate decodes the raw model output into a candidate record. Models
// sometimes wrap JSON in markdown fences despite instructions, so fences are
// stripped first. A response that is not valid JSON is a validation failure:
// re-running the same prompt is not expected to help.
func ParseCandidate(raw string) (*model.ExtractedTruck, error) {
	cleaned := stripFences(raw)
	if strings.TrimSpace(cleaned) == "" {
		return nil, resilience.NewValidationError("extraction response", "empty output")
	}

	var truck model.ExtractedTruck
	if err := json.Unmarshal([]byte(cleaned), &truck); err != nil {
		return nil, resilience.NewValidationError("extraction response", "not valid JSON: "+err.Error())
	}
	return &truck, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
