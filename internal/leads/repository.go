package leads

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead storage.
type Repository interface {
	Create(ctx context.Context, lead *Lead) (*Lead, error)
	List(ctx context.Context) ([]*Lead, error)
	GetByID(ctx context.Context, id string) (*Lead, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

// InMemoryRepository is an in-memory Repository used in tests and
// database-less development mode.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads []*Lead // newest first
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Create stores a new lead at the head of the collection. A missing ID is
// assigned server-side; the client-generated provisional ID is otherwise
// kept as-is.
func (r *InMemoryRepository) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	if lead == nil {
		return nil, ErrInvalidInput
	}

	stored := *lead
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Status == "" {
		stored.Status = StatusNew
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.leads = append([]*Lead{&stored}, r.leads...)
	r.mu.Unlock()

	out := stored
	return &out, nil
}

// List returns all leads, newest first.
func (r *InMemoryRepository) List(ctx context.Context) ([]*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Lead, 0, len(r.leads))
	for _, l := range r.leads {
		copied := *l
		out = append(out, &copied)
	}
	return out, nil
}

// GetByID retrieves a lead by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.leads {
		if l.ID == id {
			copied := *l
			return &copied, nil
		}
	}
	return nil, ErrLeadNotFound
}

// UpdateStatus mutates only the status field of an existing lead.
func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id, status string) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.leads {
		if l.ID == id {
			l.Status = status
			return nil
		}
	}
	return ErrLeadNotFound
}

// Delete removes a lead by ID.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, l := range r.leads {
		if l.ID == id {
			r.leads = append(r.leads[:i], r.leads[i+1:]...)
			return nil
		}
	}
	return ErrLeadNotFound
}
