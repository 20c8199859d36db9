package openai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/llm"
)

// Client implements llm.Client using the official openai-go SDK.
type Client struct {
	model string
	opts  []option.RequestOption
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, baseURL, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{model: model, opts: opts}, nil
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Generation, error) {
	client := openai.NewClient(c.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: BuildMessages(req),
	})
	if err != nil {
		return llm.Generation{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return llm.Generation{}, llm.Wrap(llm.KindInvalidPayload, "openai response missing choices", nil)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return llm.Generation{}, llm.Wrap(llm.KindInvalidPayload, "openai response empty content", nil)
	}

	gen := llm.Generation{
		Content:          content,
		Model:            resp.Model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	log.Printf("llm response model=%s post=%d prompt_tokens=%d completion_tokens=%d total_tokens=%d",
		gen.Model, req.PostNumber, gen.PromptTokens, gen.CompletionTokens, gen.TotalTokens)
	return gen, nil
}

// classify maps SDK errors onto the provider-neutral taxonomy.
func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return llm.Wrap(llm.KindRateLimited, "openai rate limited", err)
		case apierr.StatusCode >= 500:
			return llm.Wrap(llm.KindOverloaded, "openai server error", err)
		case apierr.StatusCode == 401 || apierr.StatusCode == 403:
			return llm.Wrap(llm.KindAuth, "openai auth failed", err)
		default:
			return llm.Wrap(llm.KindInvalidPayload, fmt.Sprintf("openai rejected request (status %d)", apierr.StatusCode), err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.Wrap(llm.KindTimeout, "openai request timeout", err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return llm.Wrap(llm.KindTimeout, "openai request timeout", err)
	}
	var operr *net.OpError
	if errors.As(err, &operr) {
		return llm.Wrap(llm.KindOverloaded, "openai connection failed", err)
	}
	return err
}

var _ llm.Client = (*Client)(nil)
