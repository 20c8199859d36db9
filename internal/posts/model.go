package posts

import "time"

const (
	StatusPlanned     = "planned"
	StatusGenerated   = "generated"
	StatusPlaceholder = "placeholder"
	StatusFlagged     = "flagged"
)

// Post is one planned content item of a project. Number is the 1-based
// position in the content plan and is stable across regenerations.
type Post struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Number      int        `json:"number"`
	Channel     string     `json:"channel"`
	Topic       string     `json:"topic"`
	TemplateID  string     `json:"templateId,omitempty"`
	Content     string     `json:"content,omitempty"`
	Status      string     `json:"status"`
	FlagReasons []string   `json:"flagReasons,omitempty"`
	TokensUsed  int        `json:"tokensUsed"`
	GeneratedAt *time.Time `json:"generatedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ContentUpdate carries the outcome of one generation slot back onto its post.
type ContentUpdate struct {
	ProjectID   string
	Number      int
	Content     string
	Status      string
	FlagReasons []string
	TokensUsed  int
	GeneratedAt time.Time
}
