package leads

import (
	"strings"
	"time"
)

// Lead statuses. A lead only ever toggles between these two.
const (
	StatusNew       = "New"
	StatusContacted = "Contacted"
)

// Lead sources. Source is fixed at creation.
const (
	SourceManual   = "Manual"
	SourceDocument = "Document"
)

// Lead is a prospective contact record tracked through New/Contacted status.
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Status    string    `json:"status"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// Draft is the caller-supplied input for creating a lead manually.
type Draft struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Validate checks the draft for manual creation. Name and email are
// required non-empty after trimming.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(d.Email) == "" {
		return ErrInvalidInput
	}
	return nil
}

// StatusUpdate is the partial update accepted by UpdateStatus.
type StatusUpdate struct {
	Status string `json:"status"`
}

// ValidStatus reports whether s is one of the two known statuses.
func ValidStatus(s string) bool {
	return s == StatusNew || s == StatusContacted
}

// ToggleStatus returns the other status. New and Contacted are the only
// two states, so toggling twice is the identity.
func ToggleStatus(s string) string {
	if s == StatusNew {
		return StatusContacted
	}
	return StatusNew
}
