package projects

import (
	"errors"
	"time"
)

const (
	StatusDraft      = "draft"
	StatusGenerating = "generating"
	StatusReady      = "ready"
)

// ErrNotFound indicates a project does not exist.
var ErrNotFound = errors.New("project not found")

// ErrValidation marks rejected input; handlers map it to a 400.
var ErrValidation = errors.New("invalid project input")

// Project is one client engagement with a planned batch of posts.
type Project struct {
	ID           string    `json:"id"`
	ClientName   string    `json:"clientName"`
	BriefSummary string    `json:"briefSummary"`
	Status       string    `json:"status"`
	PostCount    int       `json:"postCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PlanItem is one entry of the content plan supplied at project creation.
// Intake and template selection happen upstream; the API receives the
// already-planned list.
type PlanItem struct {
	Channel    string `json:"channel"`
	Topic      string `json:"topic"`
	TemplateID string `json:"templateId"`
}
