package extract

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/resilience"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/pkg/gemini"
)

// GeminiExtractor runs structured extraction through the Gemini API in JSON
// response mode.
type GeminiExtractor struct {
	client gemini.Client
}

// NewGeminiExtractor wraps a Gemini client as an EntityExtractor.
func NewGeminiExtractor(client gemini.Client) *GeminiExtractor {
	return &GeminiExtractor{client: client}
}

func (g *GeminiExtractor) Extract(ctx context.Context, page *Page) (*model.ExtractedTruck, error) {
	raw, err := g.client.GenerateJSON(ctx, BuildPrompt(page))
	if err != nil {
		var apiErr *gemini.APIError
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, apiErr.StatusCode)
		}
		if resilience.IsTransient(err) {
			return nil, resilience.NewTransientError(err, 0)
		}
		return nil, eris.Wrap(err, "extract: gemini extraction")
	}
	return ParseCandidate(raw)
}
