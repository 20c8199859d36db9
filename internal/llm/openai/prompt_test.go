package openai

import (
	"strings"
	"testing"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/llm"
)

func TestBuildUserPromptIncludesPlanFields(t *testing.T) {
	prompt := buildUserPrompt(llm.Request{
		PostNumber: 7,
		Channel:    "blog",
		Topic:      "Why local beats big-box",
		TemplateID: "listicle",
		Brief:      "Family hardware store, friendly tone.",
	})

	for _, want := range []string{"Channel: blog", "Topic: Why local beats big-box", "Template: listicle", "Post 7", "Family hardware store"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildMessagesPlainGeneration(t *testing.T) {
	msgs := BuildMessages(llm.Request{PostNumber: 1, Channel: "social", Topic: "Promo"})
	if len(msgs) != 2 {
		t.Fatalf("expected system+user, got %d messages", len(msgs))
	}
}

func TestBuildMessagesRevisionCarriesPreviousDraft(t *testing.T) {
	msgs := BuildMessages(llm.Request{
		PostNumber: 2,
		Channel:    "email",
		Topic:      "Welcome series",
		Feedback:   "warmer tone",
		Previous:   "old draft text",
	})
	if len(msgs) != 4 {
		t.Fatalf("expected system+user+assistant+user, got %d messages", len(msgs))
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "", "gpt-4o-mini"); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if _, err := NewClient("sk-test", "", ""); err == nil {
		t.Fatalf("expected error for missing model")
	}
	if _, err := NewClient("sk-test", "https://proxy.example/v1", "gpt-4o-mini"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
