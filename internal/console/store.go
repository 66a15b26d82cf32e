// Package console holds the client-side controllers of the lead console.
// The Store owns an in-memory ordered lead collection kept consistent with
// the remote lead resource through optimistic mutations and wholesale
// refresh.
package console

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apexcrm/lead-console/internal/leads"
	"github.com/apexcrm/lead-console/pkg/logging"
)

// StatusFilter selects a subset of the collection for display.
type StatusFilter string

const (
	FilterAll       StatusFilter = "All"
	FilterNew       StatusFilter = leads.StatusNew
	FilterContacted StatusFilter = leads.StatusContacted
)

// LeadResource is the remote lead store.
type LeadResource interface {
	List(ctx context.Context) ([]*leads.Lead, error)
	Create(ctx context.Context, lead *leads.Lead) (*leads.Lead, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

// ExtractionResource turns an uploaded document into a persisted lead.
type ExtractionResource interface {
	Extract(ctx context.Context, document []byte, mediaType string) (*leads.Lead, error)
}

// StoreConfig configures a Store.
type StoreConfig struct {
	Remote    LeadResource
	Extractor ExtractionResource
	Notifier  Notifier
	Logger    *logging.Logger
	Timeout   time.Duration
}

// Store is the lead store controller. All mutation goes through its
// methods; the collection is newest-first and filtering only ever subsets,
// never reorders.
type Store struct {
	remote    LeadResource
	extractor ExtractionResource
	notifier  Notifier
	logger    *logging.Logger
	timeout   time.Duration

	mu         sync.Mutex
	leads      []*leads.Lead
	filter     StatusFilter
	extracting bool
}

// NewStore creates a lead store controller.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Remote == nil {
		panic("console: lead resource required")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{
		remote:    cfg.Remote,
		extractor: cfg.Extractor,
		notifier:  notifier,
		logger:    logger,
		timeout:   timeout,
		filter:    FilterAll,
	}
}

// Create validates the draft, creates the lead remotely, and inserts the
// server-confirmed lead at the head of the collection. Invalid drafts make
// zero collection changes and zero network calls. A failed remote create
// adds nothing: the collection never holds partial state.
func (s *Store) Create(ctx context.Context, draft leads.Draft) (*leads.Lead, error) {
	if strings.TrimSpace(draft.Name) == "" || strings.TrimSpace(draft.Email) == "" {
		s.notifier.Error("Name and email are required.")
		return nil, ErrInvalidInput
	}

	provisional := &leads.Lead{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(draft.Name),
		Email:     strings.TrimSpace(draft.Email),
		Phone:     strings.TrimSpace(draft.Phone),
		Status:    leads.StatusNew,
		Source:    leads.SourceManual,
		CreatedAt: time.Now().UTC(),
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	confirmed, err := s.remote.Create(callCtx, provisional)
	if err != nil {
		s.logger.Error("remote lead create failed", "error", err)
		s.notifier.Error("Failed to add lead.")
		return nil, fmt.Errorf("%w: %v", ErrRemoteWriteFailed, err)
	}

	s.mu.Lock()
	s.leads = append([]*leads.Lead{confirmed}, s.leads...)
	s.mu.Unlock()

	s.notifier.Success("Lead added.")
	return confirmed, nil
}

// CreateFromDocument uploads a PDF to the extraction resource and inserts
// the resulting lead at the head of the collection. Non-PDF media types
// are rejected before any upload. The in-progress flag is cleared on every
// exit path.
func (s *Store) CreateFromDocument(ctx context.Context, document []byte, mediaType string) (*leads.Lead, error) {
	if mediaType != "application/pdf" {
		s.notifier.Error("Only PDF files are supported.")
		return nil, ErrUnsupportedFileType
	}
	if s.extractor == nil {
		return nil, fmt.Errorf("%w: no extraction resource configured", ErrExtractionFailed)
	}

	s.mu.Lock()
	s.extracting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.extracting = false
		s.mu.Unlock()
	}()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lead, err := s.extractor.Extract(callCtx, document, mediaType)
	if err != nil {
		s.logger.Error("document extraction failed", "error", err)
		s.notifier.Error("Failed to extract lead from document.")
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.Status == "" {
		lead.Status = leads.StatusNew
	}
	lead.Source = leads.SourceDocument

	s.mu.Lock()
	s.leads = append([]*leads.Lead{lead}, s.leads...)
	s.mu.Unlock()

	s.notifier.Success("Lead extracted from document.")
	return lead, nil
}

// UpdateStatus applies the status locally first, then confirms remotely.
// A failed remote update is reported but the optimistic local state stays
// in place; Refresh is the recovery path.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) error {
	if !leads.ValidStatus(status) {
		return leads.ErrInvalidStatus
	}

	s.mu.Lock()
	var found bool
	for _, l := range s.leads {
		if l.ID == id {
			l.Status = status
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return ErrLeadNotFound
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.remote.UpdateStatus(callCtx, id, status); err != nil {
		s.logger.Error("remote status update failed", "error", err, "id", id)
		s.notifier.Error("Failed to update lead status.")
		return fmt.Errorf("%w: %v", ErrRemoteWriteFailed, err)
	}

	s.notifier.Success("Lead status updated.")
	return nil
}

// ToggleStatus flips a lead between New and Contacted.
func (s *Store) ToggleStatus(ctx context.Context, id string) error {
	s.mu.Lock()
	var next string
	var found bool
	for _, l := range s.leads {
		if l.ID == id {
			next = leads.ToggleStatus(l.Status)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return ErrLeadNotFound
	}
	return s.UpdateStatus(ctx, id, next)
}

// Delete removes the lead locally first, then confirms remotely. A failed
// remote delete is reported but the local removal is not reversed.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	var found bool
	for i, l := range s.leads {
		if l.ID == id {
			s.leads = append(s.leads[:i], s.leads[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return ErrLeadNotFound
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.remote.Delete(callCtx, id); err != nil {
		s.logger.Error("remote delete failed", "error", err, "id", id)
		s.notifier.Error("Failed to delete lead.")
		return fmt.Errorf("%w: %v", ErrRemoteWriteFailed, err)
	}

	s.notifier.Success("Lead deleted.")
	return nil
}

// Refresh replaces the entire local collection with the remote contents.
// This is the only path back to ground truth after an optimistic mutation
// whose remote call failed. Local state is untouched when the read fails.
func (s *Store) Refresh(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	remote, err := s.remote.List(callCtx)
	if err != nil {
		s.logger.Error("remote list failed", "error", err)
		s.notifier.Error("Failed to load leads.")
		return fmt.Errorf("%w: %v", ErrRemoteReadFailed, err)
	}

	s.mu.Lock()
	s.leads = remote
	s.mu.Unlock()
	return nil
}

// SetFilter sets the current display filter.
func (s *Store) SetFilter(f StatusFilter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

// Filter returns the subset of the collection matching f, in stored
// order. FilterAll returns the whole collection. Pure: never mutates the
// underlying collection or its order.
func (s *Store) Filter(f StatusFilter) []*leads.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*leads.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		if f == FilterAll || string(f) == l.Status {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out
}

// Leads returns the current view: the collection subset matching the
// active filter.
func (s *Store) Leads() []*leads.Lead {
	s.mu.Lock()
	f := s.filter
	s.mu.Unlock()
	return s.Filter(f)
}

// Extracting reports whether a document extraction is in progress.
func (s *Store) Extracting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extracting
}
