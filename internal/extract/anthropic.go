package extract

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/resilience"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/pkg/anthropic"
)

const anthropicMaxTokens = 4096

// AnthropicExtractor runs structured extraction through the Anthropic
// Messages API. It is the alternative provider, selected via config.
type AnthropicExtractor struct {
	client anthropic.Client
	model  string
}

// NewAnthropicExtractor wraps an Anthropic client as an EntityExtractor.
func NewAnthropicExtractor(client anthropic.Client, modelName string) *AnthropicExtractor {
	return &AnthropicExtractor{client: client, model: modelName}
}

func (a *AnthropicExtractor) Extract(ctx context.Context, page *Page) (*model.ExtractedTruck, error) {
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: anthropicMaxTokens,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: BuildUserMessage(page)}},
	})
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, apiErr.StatusCode)
		}
		if resilience.IsTransient(err) {
			return nil, resilience.NewTransientError(err, 0)
		}
		return nil, eris.Wrap(err, "extract: anthropic extraction")
	}
	return ParseCandidate(resp.Text())
}
