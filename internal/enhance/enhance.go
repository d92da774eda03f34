// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enhance rewrites a free-text research question into a tighter
// academic search query through an OpenAI-compatible chat endpoint. The
// capability is best-effort by contract: callers fall back to the raw query
// on any error, so a missing or misbehaving model never fails a run.
package enhance

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/litsearch/pkg/types"
)

// maxEnhancedLen rejects runaway completions; enhanced queries are meant to
// stay short and keyword-dense.
const maxEnhancedLen = 100

const promptTemplate = `Create a precise academic search query for scientific databases.

Original query: "%s"

Generate a focused search query by:
1. Keep main scientific concepts from the original
2. Add 2-3 specific technical terms from peer-reviewed literature
3. Include research methodology keywords (modeling, analysis, epidemiology, surveillance)
4. Use academic terminology found in paper titles/abstracts
5. Avoid broad common words that match irrelevant content

Return only the enhanced search query (under 80 characters):`

// Enhancer rewrites a search query. Implementations must be safe to skip:
// any error means "use the original query".
type Enhancer interface {
	Enhance(ctx context.Context, query string) (string, error)
}

// LLMEnhancer calls a chat-completion model. The default base URL targets a
// local Ollama server's OpenAI-compatible endpoint.
type LLMEnhancer struct {
	client *openai.Client
	model  string
}

const defaultBaseURL = "http://localhost:11434/v1"

// New builds an enhancer from configuration.
func New(cfg types.EnhanceConfig) *LLMEnhancer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = defaultBaseURL
	}
	return &LLMEnhancer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Enhance asks the model for a sharpened query and validates the answer.
// Anything that does not look like a clean, focused query is an error so
// the caller degrades to the original.
func (e *LLMEnhancer) Enhance(ctx context.Context, query string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(promptTemplate, query)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("enhancement request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("enhancement returned no choices")
	}

	enhanced := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"'`)
	if err := validate(enhanced, query); err != nil {
		return "", err
	}
	return enhanced, nil
}

// validate applies the acceptance rules for model output: no markup or
// thinking tags, no blank lines, bounded length, and no shorter than the
// query it is supposed to sharpen.
func validate(enhanced, original string) error {
	switch {
	case enhanced == "":
		return fmt.Errorf("enhancement returned empty query")
	case len(enhanced) > maxEnhancedLen:
		return fmt.Errorf("enhanced query too long (%d chars)", len(enhanced))
	case strings.ContainsAny(enhanced, "<>"):
		return fmt.Errorf("enhanced query contains markup")
	case strings.Contains(enhanced, "\n\n"):
		return fmt.Errorf("enhanced query contains blank lines")
	case len(enhanced) < len(original):
		return fmt.Errorf("enhanced query shorter than original")
	}
	return nil
}
