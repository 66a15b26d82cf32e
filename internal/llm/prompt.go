package llm

import (
	"fmt"
	"strings"

	"github.com/apexcrm/lead-console/internal/leads"
)

const leadAssistantInstruction = "You are a sales assistant helping the user decide how to engage a lead. " +
	"Answer the question using only the lead details provided. Keep the answer brief, two or three sentences at most."

// LeadPrompt builds the single-shot prompt for one chat turn. Every call
// reconstructs the full lead context; prior transcript turns are not
// replayed to the model.
func LeadPrompt(lead *leads.Lead, question string) Request {
	phone := strings.TrimSpace(lead.Phone)
	if phone == "" {
		phone = "Not provided"
	}

	context := fmt.Sprintf(
		"Lead details:\nName: %s\nEmail: %s\nPhone: %s\nStatus: %s\nSource: %s\nCreated: %s",
		lead.Name,
		lead.Email,
		phone,
		lead.Status,
		lead.Source,
		lead.CreatedAt.Format("Jan 2, 2006"),
	)

	return Request{
		System: []string{leadAssistantInstruction},
		Messages: []Message{
			{Role: RoleUser, Content: context + "\n\nQuestion: " + strings.TrimSpace(question)},
		},
		Temperature: -1,
		LeadID:      lead.ID,
		Question:    strings.TrimSpace(question),
	}
}
