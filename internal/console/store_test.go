package console

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexcrm/lead-console/internal/leads"
	"github.com/apexcrm/lead-console/pkg/logging"
)

type fakeResource struct {
	mu          sync.Mutex
	leads       []*leads.Lead
	createErr   error
	updateErr   error
	deleteErr   error
	listErr     error
	createCalls int
	updateCalls int
	deleteCalls int
	listCalls   int
}

func (f *fakeResource) List(ctx context.Context) ([]*leads.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*leads.Lead, len(f.leads))
	copy(out, f.leads)
	return out, nil
}

func (f *fakeResource) Create(ctx context.Context, lead *leads.Lead) (*leads.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	// Server replaces the provisional id on confirmation.
	confirmed := *lead
	confirmed.ID = "srv-" + lead.ID
	f.leads = append([]*leads.Lead{&confirmed}, f.leads...)
	out := confirmed
	return &out, nil
}

func (f *fakeResource) UpdateStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	return f.updateErr
}

func (f *fakeResource) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleteErr
}

type fakeExtractor struct {
	lead  *leads.Lead
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, document []byte, mediaType string) (*leads.Lead, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := *f.lead
	return &out, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func newTestStore(remote *fakeResource, extractor ExtractionResource, notifier Notifier) *Store {
	return NewStore(StoreConfig{
		Remote:    remote,
		Extractor: extractor,
		Notifier:  notifier,
		Logger:    logging.New("error"),
	})
}

func TestCreate_AddsConfirmedLeadAtHead(t *testing.T) {
	remote := &fakeResource{}
	store := newTestStore(remote, nil, nil)
	ctx := context.Background()

	_, err := store.Create(ctx, leads.Draft{Name: "Old", Email: "old@x.com"})
	require.NoError(t, err)
	created, err := store.Create(ctx, leads.Draft{Name: "Ana Ruiz", Email: "ana@x.com"})
	require.NoError(t, err)

	all := store.Filter(FilterAll)
	require.Len(t, all, 2)
	assert.Equal(t, created.ID, all[0].ID, "new lead must sit at index 0")
	assert.Equal(t, leads.StatusNew, all[0].Status)
	assert.Equal(t, leads.SourceManual, all[0].Source)
	// The collection holds the server-confirmed lead, not the provisional one.
	assert.True(t, len(all[0].ID) > 4 && all[0].ID[:4] == "srv-")
}

func TestCreate_InvalidDraft_NoMutationNoNetwork(t *testing.T) {
	remote := &fakeResource{}
	notifier := &recordingNotifier{}
	store := newTestStore(remote, nil, notifier)

	_, err := store.Create(context.Background(), leads.Draft{Name: "", Email: "a@b.com"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, store.Filter(FilterAll), "collection must be unchanged")
	assert.Zero(t, remote.createCalls, "no network call for invalid input")
	assert.Len(t, notifier.errors, 1)
}

func TestCreate_RemoteFailure_AddsNothing(t *testing.T) {
	remote := &fakeResource{createErr: errors.New("boom")}
	notifier := &recordingNotifier{}
	store := newTestStore(remote, nil, notifier)

	_, err := store.Create(context.Background(), leads.Draft{Name: "Ana", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrRemoteWriteFailed)

	assert.Empty(t, store.Filter(FilterAll), "failed create must never leave partial state")
	assert.Len(t, notifier.errors, 1)
}

func TestCreateFromDocument_RejectsNonPDF(t *testing.T) {
	remote := &fakeResource{}
	extractor := &fakeExtractor{}
	store := newTestStore(remote, extractor, nil)

	_, err := store.CreateFromDocument(context.Background(), []byte("hello"), "text/plain")
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
	assert.Zero(t, extractor.calls, "extraction resource must not be called")
}

func TestCreateFromDocument_Success(t *testing.T) {
	remote := &fakeResource{}
	extractor := &fakeExtractor{lead: &leads.Lead{
		ID:     "doc-1",
		Name:   "Ana",
		Status: leads.StatusNew,
		Source: leads.SourceDocument,
	}}
	store := newTestStore(remote, extractor, nil)

	lead, err := store.CreateFromDocument(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, leads.SourceDocument, lead.Source)
	all := store.Filter(FilterAll)
	require.Len(t, all, 1)
	assert.Equal(t, "doc-1", all[0].ID)
	assert.False(t, store.Extracting(), "in-progress flag must clear on success")
}

func TestCreateFromDocument_FailureClearsFlag(t *testing.T) {
	remote := &fakeResource{}
	extractor := &fakeExtractor{err: errors.New("ocr down")}
	store := newTestStore(remote, extractor, nil)

	_, err := store.CreateFromDocument(context.Background(), []byte("%PDF"), "application/pdf")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Empty(t, store.Filter(FilterAll))
	assert.False(t, store.Extracting(), "in-progress flag must clear on failure")
}

func seedStore(t *testing.T, store *Store, remote *fakeResource, n int) []*leads.Lead {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := store.Create(context.Background(), leads.Draft{Name: "Lead", Email: "l@x.com"})
		require.NoError(t, err)
	}
	return store.Filter(FilterAll)
}

func TestUpdateStatus_OptimisticWithoutRollback(t *testing.T) {
	remote := &fakeResource{}
	notifier := &recordingNotifier{}
	store := newTestStore(remote, nil, notifier)
	all := seedStore(t, store, remote, 1)

	remote.updateErr = errors.New("network down")
	err := store.UpdateStatus(context.Background(), all[0].ID, leads.StatusContacted)
	assert.ErrorIs(t, err, ErrRemoteWriteFailed)

	// The optimistic mutation stays in place; Refresh is the recovery path.
	got := store.Filter(FilterAll)
	assert.Equal(t, leads.StatusContacted, got[0].Status)
	assert.Len(t, notifier.errors, 1)
}

func TestUpdateStatus_Idempotent(t *testing.T) {
	remote := &fakeResource{}
	store := newTestStore(remote, nil, nil)
	all := seedStore(t, store, remote, 1)
	ctx := context.Background()

	require.NoError(t, store.UpdateStatus(ctx, all[0].ID, leads.StatusContacted))
	once := store.Filter(FilterAll)[0].Status

	require.NoError(t, store.UpdateStatus(ctx, all[0].ID, leads.StatusContacted))
	twice := store.Filter(FilterAll)[0].Status

	assert.Equal(t, once, twice)
}

func TestToggleStatus_RoundTrip(t *testing.T) {
	remote := &fakeResource{}
	store := newTestStore(remote, nil, nil)
	all := seedStore(t, store, remote, 1)
	ctx := context.Background()

	original := all[0].Status
	require.NoError(t, store.ToggleStatus(ctx, all[0].ID))
	assert.Equal(t, leads.StatusContacted, store.Filter(FilterAll)[0].Status)

	require.NoError(t, store.ToggleStatus(ctx, all[0].ID))
	assert.Equal(t, original, store.Filter(FilterAll)[0].Status)
}

func TestDelete_OptimisticWithoutRollback(t *testing.T) {
	remote := &fakeResource{}
	store := newTestStore(remote, nil, nil)
	all := seedStore(t, store, remote, 2)

	remote.deleteErr = errors.New("network down")
	err := store.Delete(context.Background(), all[0].ID)
	assert.ErrorIs(t, err, ErrRemoteWriteFailed)

	// Removal is not reversed on remote failure.
	assert.Len(t, store.Filter(FilterAll), 1)
}

func TestDelete_UnknownID(t *testing.T) {
	remote := &fakeResource{}
	store := newTestStore(remote, nil, nil)

	err := store.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrLeadNotFound)
	assert.Zero(t, remote.deleteCalls)
}

func TestRefresh_WholesaleReplace(t *testing.T) {
	remote := &fakeResource{}
	store := newTestStore(remote, nil, nil)
	all := seedStore(t, store, remote, 1)

	// Server-side delete fails locally unrecorded: simulate divergence.
	remote.deleteErr = errors.New("down")
	_ = store.Delete(context.Background(), all[0].ID)
	assert.Empty(t, store.Filter(FilterAll))

	remote.deleteErr = nil
	require.NoError(t, store.Refresh(context.Background()))

	// Ground truth restored from remote.
	assert.Len(t, store.Filter(FilterAll), 1)
}

func TestRefresh_FailureLeavesLocalState(t *testing.T) {
	remote := &fakeResource{}
	store := newTestStore(remote, nil, nil)
	seedStore(t, store, remote, 2)

	remote.listErr = errors.New("down")
	err := store.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRemoteReadFailed)
	assert.Len(t, store.Filter(FilterAll), 2)
}

func TestFilter_PartitionsStore(t *testing.T) {
	remote := &fakeResource{}
	store := newTestStore(remote, nil, nil)
	all := seedStore(t, store, remote, 4)
	ctx := context.Background()

	require.NoError(t, store.UpdateStatus(ctx, all[0].ID, leads.StatusContacted))
	require.NoError(t, store.UpdateStatus(ctx, all[2].ID, leads.StatusContacted))

	whole := store.Filter(FilterAll)
	newOnes := store.Filter(FilterNew)
	contacted := store.Filter(FilterContacted)

	assert.Len(t, whole, 4)
	assert.Equal(t, len(whole), len(newOnes)+len(contacted), "New and Contacted must partition the store")

	seen := map[string]bool{}
	for _, l := range append(newOnes, contacted...) {
		assert.False(t, seen[l.ID], "no lead may appear in both subsets")
		seen[l.ID] = true
	}

	// Filtering never reorders: subsets preserve relative store order.
	idx := map[string]int{}
	for i, l := range whole {
		idx[l.ID] = i
	}
	for i := 1; i < len(contacted); i++ {
		assert.Less(t, idx[contacted[i-1].ID], idx[contacted[i].ID])
	}
}

func TestLeads_AppliesActiveFilter(t *testing.T) {
	remote := &fakeResource{}
	store := newTestStore(remote, nil, nil)
	all := seedStore(t, store, remote, 2)
	ctx := context.Background()

	require.NoError(t, store.UpdateStatus(ctx, all[0].ID, leads.StatusContacted))
	store.SetFilter(FilterContacted)

	view := store.Leads()
	require.Len(t, view, 1)
	assert.Equal(t, leads.StatusContacted, view[0].Status)
}
