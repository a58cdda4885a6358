package narrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/taskquest/backend/internal/models"
)

// LLMClient abstracts the model call so tests can swap in a fake.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Composer turns a notify-worthy CompletionResult into one line of
// notification copy. Any failure falls back to deterministic template copy
// so narration can never cost a user their completion response.
type Composer struct {
	llm     LLMClient
	timeout time.Duration
}

func NewComposer(llm LLMClient) *Composer {
	return &Composer{llm: llm, timeout: 10 * time.Second}
}

// NewComposerFromEnv returns a Composer backed by the Anthropic API, or nil
// when no API key is configured (narration disabled).
func NewComposerFromEnv() *Composer {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil
	}
	model := os.Getenv("ANTHROPIC_MODEL")
	if model == "" {
		model = "claude-haiku-4-5-20251001"
	}
	return NewComposer(NewAPIClient(model))
}

func (c *Composer) Narrate(result *models.CompletionResult) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	raw, err := c.llm.Complete(ctx, SystemPrompt(), BuildUserPrompt(result))
	if err != nil {
		return FallbackLine(result), fmt.Errorf("narrate: %w", err)
	}

	line, err := ParseResponse(raw)
	if err != nil {
		return FallbackLine(result), fmt.Errorf("parse narration: %w", err)
	}
	return line, nil
}

// ── APIClient — Anthropic SDK ───────────────────────────

type APIClient struct {
	client *anthropic.Client
	model  string
}

func NewAPIClient(model string) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	return &APIClient{client: &client, model: model}
}

func (c *APIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   256,
		Temperature: param.NewOpt(0.8),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", err
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}
