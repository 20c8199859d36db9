package qa

import (
	"strings"
	"testing"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/generation"
)

func longBody(lead string) string {
	return lead + "\n\n" + strings.Repeat("A paragraph of real content. ", 10)
}

func TestGatePassesCleanContent(t *testing.T) {
	g := NewGate(0)
	items := []Item{{PostNumber: 1, Channel: "social"}}
	results := []generation.WorkResult{{
		Index: 0, PostNumber: 1, Status: generation.StatusSuccess,
		Content: longBody("Short and punchy launch note."),
	}}

	findings := g.Evaluate(items, results)
	if len(findings) != 1 || !findings[0].Passed {
		t.Fatalf("findings = %+v, want one pass", findings)
	}
}

func TestGateFlagsPlaceholders(t *testing.T) {
	g := NewGate(0)
	items := []Item{{PostNumber: 4, Channel: "social"}}
	results := []generation.WorkResult{{
		Index: 0, PostNumber: 4, Status: generation.StatusPlaceholder,
		Content: generation.PlaceholderMarker + " social post 4: launch",
	}}

	findings := g.Evaluate(items, results)
	if findings[0].Passed {
		t.Fatalf("placeholder result passed the gate")
	}
	if len(findings[0].Reasons) == 0 || findings[0].Reasons[0] != "placeholder content" {
		t.Fatalf("reasons = %v", findings[0].Reasons)
	}
}

func TestGateFlagsShortContent(t *testing.T) {
	g := NewGate(100)
	results := []generation.WorkResult{{
		Index: 0, PostNumber: 1, Status: generation.StatusSuccess, Content: "too short",
	}}

	findings := g.Evaluate([]Item{{PostNumber: 1, Channel: "social"}}, results)
	if findings[0].Passed {
		t.Fatalf("short content passed the gate")
	}
}

func TestGateRequiresHeadingForLongForm(t *testing.T) {
	g := NewGate(0)

	noHeading := []generation.WorkResult{{
		Index: 0, PostNumber: 2, Status: generation.StatusSuccess,
		Content: longBody("Just paragraphs, no structure."),
	}}
	findings := g.Evaluate([]Item{{PostNumber: 2, Channel: "blog"}}, noHeading)
	if findings[0].Passed {
		t.Fatalf("heading-less blog post passed the gate")
	}
	found := false
	for _, reason := range findings[0].Reasons {
		if reason == "missing heading" {
			found = true
		}
	}
	if !found {
		t.Fatalf("reasons = %v, want missing heading", findings[0].Reasons)
	}

	withHeading := []generation.WorkResult{{
		Index: 0, PostNumber: 2, Status: generation.StatusSuccess,
		Content: longBody("# A Proper Title"),
	}}
	findings = g.Evaluate([]Item{{PostNumber: 2, Channel: "blog"}}, withHeading)
	if !findings[0].Passed {
		t.Fatalf("blog post with heading failed: %v", findings[0].Reasons)
	}

	// Social posts do not need headings.
	findings = g.Evaluate([]Item{{PostNumber: 2, Channel: "social"}}, noHeading)
	if !findings[0].Passed {
		t.Fatalf("social post without heading failed: %v", findings[0].Reasons)
	}
}

func TestGateOneFindingPerResult(t *testing.T) {
	g := NewGate(0)
	items := []Item{{PostNumber: 1, Channel: "social"}, {PostNumber: 2, Channel: "blog"}}
	results := []generation.WorkResult{
		{Index: 0, PostNumber: 1, Status: generation.StatusSuccess, Content: longBody("ok")},
		{Index: 1, PostNumber: 2, Status: generation.StatusFailed},
	}

	findings := g.Evaluate(items, results)
	if len(findings) != 2 {
		t.Fatalf("findings = %d, want 2", len(findings))
	}
	if !findings[0].Passed || findings[1].Passed {
		t.Fatalf("findings = %+v", findings)
	}
}
