package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apexcrm/lead-console/internal/leads"
	"github.com/apexcrm/lead-console/pkg/logging"
)

// ServiceConfig holds configuration for the notification service.
type ServiceConfig struct {
	Recipient     string // sales inbox that receives capture alerts
	RecipientName string
	SendTimeout   time.Duration
}

// Service sends capture alerts when a new lead lands. All sends are best
// effort: a notification failure is logged and never propagated to the
// capture path.
type Service struct {
	sender        EmailSender
	recipient     string
	recipientName string
	timeout       time.Duration
	logger        *logging.Logger
}

// NewService creates a notification service. Returns nil when no sender
// or recipient is configured; a nil Service is safe to call.
func NewService(sender EmailSender, cfg ServiceConfig, logger *logging.Logger) *Service {
	if sender == nil || strings.TrimSpace(cfg.Recipient) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		sender:        sender,
		recipient:     cfg.Recipient,
		recipientName: cfg.RecipientName,
		timeout:       timeout,
		logger:        logger,
	}
}

// LeadCaptured emails a capture alert for a newly created lead.
func (s *Service) LeadCaptured(ctx context.Context, lead *leads.Lead) {
	if s == nil || lead == nil {
		return
	}

	phone := strings.TrimSpace(lead.Phone)
	if phone == "" {
		phone = "Not provided"
	}

	msg := EmailMessage{
		To:      s.recipient,
		ToName:  s.recipientName,
		Subject: fmt.Sprintf("New lead captured: %s", lead.Name),
		Body: fmt.Sprintf(
			"A new lead was captured.\n\nName: %s\nEmail: %s\nPhone: %s\nSource: %s\nCaptured: %s\n",
			lead.Name,
			lead.Email,
			phone,
			lead.Source,
			lead.CreatedAt.Format(time.RFC1123),
		),
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.sender.Send(sendCtx, msg); err != nil {
		s.logger.Error("lead capture notification failed", "error", err, "lead_id", lead.ID)
		return
	}
	s.logger.Info("lead capture notification sent", "lead_id", lead.ID, "to", s.recipient)
}
