package llm

import (
	"context"
	"fmt"
	"strings"
)

// Client abstracts content generation providers.
type Client interface {
	Generate(ctx context.Context, req Request) (Generation, error)
}

// Request captures the inputs for generating one content item.
type Request struct {
	ProjectID  string
	PostNumber int
	Channel    string
	Topic      string
	TemplateID string
	Brief      string

	// Set on revision runs.
	Feedback string
	Previous string
}

// Generation is the outcome of a successful provider call.
type Generation struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// EstimateTokens guesses the token cost of a request before it is sent, for
// budget reservations. The guess is deliberately coarse; the budget corrects
// itself from actuals on commit.
func EstimateTokens(req Request) int {
	promptChars := len(req.Topic) + len(req.Brief) + len(req.Feedback) + len(req.Previous)
	estimate := promptChars/4 + expectedCompletionTokens(req.Channel)
	if estimate < 200 {
		estimate = 200
	}
	return estimate
}

func expectedCompletionTokens(channel string) int {
	switch strings.ToLower(strings.TrimSpace(channel)) {
	case "blog", "newsletter":
		return 1200
	case "email":
		return 700
	default:
		return 400
	}
}

// PlaceholderClient is the stub wired when no provider is configured. Every
// call fails permanently so batches degrade to placeholder content.
type PlaceholderClient struct{}

func (PlaceholderClient) Generate(ctx context.Context, req Request) (Generation, error) {
	_ = ctx
	_ = req
	return Generation{}, &Error{Kind: KindAuth, Message: "llm provider not configured"}
}

// CannedClient produces deterministic local content, used in dev mode and
// demos where no provider credentials exist.
type CannedClient struct {
	Model string
}

func (c CannedClient) Generate(ctx context.Context, req Request) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return Generation{}, &Error{Kind: KindTimeout, Message: "canned generate", cause: err}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", strings.TrimSpace(req.Topic))
	fmt.Fprintf(&sb, "Draft for %s post %d.\n\n", req.Channel, req.PostNumber)
	if req.Brief != "" {
		fmt.Fprintf(&sb, "%s\n\n", req.Brief)
	}
	if req.Feedback != "" {
		fmt.Fprintf(&sb, "Revised per feedback: %s\n\n", req.Feedback)
	}
	sb.WriteString("Call to action: learn more on our site.\n")

	content := sb.String()
	tokens := len(content) / 4
	model := c.Model
	if model == "" {
		model = "canned"
	}
	return Generation{
		Content:          content,
		Model:            model,
		PromptTokens:     tokens / 3,
		CompletionTokens: tokens - tokens/3,
		TotalTokens:      tokens,
	}, nil
}
