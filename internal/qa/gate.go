package qa

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/generation"
)

const defaultMinContentChars = 80

// Item identifies a batch slot for the gate: the post it targets and the
// channel whose conventions apply.
type Item struct {
	PostNumber int
	Channel    string
}

// Finding is the gate's verdict for one slot. A failed finding carries the
// reasons the post needs manual attention; delivery is never blocked.
type Finding struct {
	Index      int      `json:"index"`
	PostNumber int      `json:"postNumber"`
	Passed     bool     `json:"passed"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Gate applies per-item quality checks to a batch result. The rules here are
// intentionally shallow: placeholder detection, minimum length, and a
// structural check for long-form channels. Anything subtler is a human's job.
type Gate struct {
	MinContentChars int
	md              goldmark.Markdown
}

// NewGate constructs a gate. minContentChars <= 0 uses the default.
func NewGate(minContentChars int) *Gate {
	if minContentChars <= 0 {
		minContentChars = defaultMinContentChars
	}
	return &Gate{
		MinContentChars: minContentChars,
		md:              goldmark.New(),
	}
}

// Evaluate produces one finding per result, in result order. items must be
// parallel to results; a missing item only skips channel-specific checks.
func (g *Gate) Evaluate(items []Item, results []generation.WorkResult) []Finding {
	findings := make([]Finding, len(results))
	for i, r := range results {
		f := Finding{Index: r.Index, PostNumber: r.PostNumber, Passed: true}

		if r.Status != generation.StatusSuccess {
			f.Passed = false
			f.Reasons = append(f.Reasons, "placeholder content")
		} else {
			if strings.Contains(r.Content, generation.PlaceholderMarker) {
				f.Passed = false
				f.Reasons = append(f.Reasons, "placeholder content")
			}
			if len(strings.TrimSpace(r.Content)) < g.MinContentChars {
				f.Passed = false
				f.Reasons = append(f.Reasons, "content too short")
			}
			if i < len(items) && isLongForm(items[i].Channel) && !g.hasHeading(r.Content) {
				f.Passed = false
				f.Reasons = append(f.Reasons, "missing heading")
			}
		}

		findings[i] = f
	}
	return findings
}

func isLongForm(channel string) bool {
	switch strings.ToLower(strings.TrimSpace(channel)) {
	case "blog", "newsletter":
		return true
	default:
		return false
	}
}

// hasHeading walks the markdown AST looking for any heading node.
func (g *Gate) hasHeading(content string) bool {
	source := []byte(content)
	doc := g.md.Parser().Parse(text.NewReader(source))

	found := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := n.(*ast.Heading); ok {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}
