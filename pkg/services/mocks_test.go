package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/catalogai/catalog-engine/pkg/apperrors"
	"github.com/catalogai/catalog-engine/pkg/models"
)

// mockCatalogRepository is an in-memory CatalogRepository for testing.
type mockCatalogRepository struct {
	items      map[uuid.UUID]*models.CatalogItem
	embeddings map[uuid.UUID][]float32

	searchHits    []*models.CatalogSearchHit
	lastThreshold float64
	lastLimit     int
	upsertErr     error
	upsertCalls   int
	createdItems  int
}

func newMockCatalogRepository() *mockCatalogRepository {
	return &mockCatalogRepository{
		items:      make(map[uuid.UUID]*models.CatalogItem),
		embeddings: make(map[uuid.UUID][]float32),
	}
}

func (m *mockCatalogRepository) Search(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*models.CatalogSearchHit, error) {
	m.lastThreshold = threshold
	m.lastLimit = limit

	// Mirrors the SQL function: below-threshold rows are not matches.
	var hits []*models.CatalogSearchHit
	for _, hit := range m.searchHits {
		if hit.Similarity >= threshold {
			hits = append(hits, hit)
		}
	}
	if limit < len(hits) {
		return hits[:limit], nil
	}
	return hits, nil
}

func (m *mockCatalogRepository) GetByID(ctx context.Context, itemID uuid.UUID) (*models.CatalogItem, error) {
	item, ok := m.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: catalog item %s", apperrors.ErrNotFound, itemID)
	}
	return item, nil
}

func (m *mockCatalogRepository) List(ctx context.Context, status string, limit int) ([]*models.CatalogItem, error) {
	var items []*models.CatalogItem
	for _, item := range m.items {
		if status == "" || item.Status == status {
			items = append(items, item)
		}
	}
	return items, nil
}

func (m *mockCatalogRepository) CreateWithEmbedding(ctx context.Context, orgID, createdBy uuid.UUID, input *models.NewCatalogItemInput, embedding []float32) (*models.CatalogItem, error) {
	item := &models.CatalogItem{
		ID:          uuid.New(),
		OrgID:       orgID,
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Price:       input.Price,
		PricingType: input.PricingType,
		ProductURL:  input.ProductURL,
		Vendor:      input.Vendor,
		SKU:         input.SKU,
		Metadata:    input.Metadata,
		Status:      models.ItemStatusActive,
		CreatedBy:   createdBy,
	}
	m.items[item.ID] = item
	m.embeddings[item.ID] = embedding
	m.createdItems++
	return item, nil
}

func (m *mockCatalogRepository) Update(ctx context.Context, itemID uuid.UUID, update *models.CatalogItemUpdate) (*models.CatalogItem, error) {
	item, ok := m.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: catalog item %s", apperrors.ErrNotFound, itemID)
	}
	if update.Name != nil {
		item.Name = *update.Name
	}
	if update.Description != nil {
		item.Description = *update.Description
	}
	if update.Category != nil {
		item.Category = *update.Category
	}
	if update.Status != nil {
		item.Status = *update.Status
	}
	return item, nil
}

func (m *mockCatalogRepository) UpsertEmbedding(ctx context.Context, itemID uuid.UUID, embedding []float32) error {
	m.upsertCalls++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.embeddings[itemID] = embedding
	return nil
}

func (m *mockCatalogRepository) ListMissingEmbeddings(ctx context.Context) ([]*models.CatalogItem, error) {
	var missing []*models.CatalogItem
	for id, item := range m.items {
		if item.Status == models.ItemStatusDeprecated {
			continue
		}
		if _, ok := m.embeddings[id]; !ok {
			missing = append(missing, item)
		}
	}
	return missing, nil
}

func (m *mockCatalogRepository) EmbeddingStats(ctx context.Context) (int, int, error) {
	return len(m.items), len(m.embeddings), nil
}

// mockProposalRepository is an in-memory ProposalRepository for testing.
type mockProposalRepository struct {
	proposals map[uuid.UUID]*models.Proposal

	// forceLostRace makes every merge and reject report a lost race.
	forceLostRace bool
	mergeCalls    int
}

func newMockProposalRepository() *mockProposalRepository {
	return &mockProposalRepository{proposals: make(map[uuid.UUID]*models.Proposal)}
}

func (m *mockProposalRepository) Create(ctx context.Context, proposal *models.Proposal) error {
	proposal.ID = uuid.New()
	m.proposals[proposal.ID] = proposal
	return nil
}

func (m *mockProposalRepository) GetByID(ctx context.Context, proposalID uuid.UUID) (*models.Proposal, error) {
	return m.proposals[proposalID], nil
}

func (m *mockProposalRepository) List(ctx context.Context, status string, limit int) ([]*models.Proposal, error) {
	var proposals []*models.Proposal
	for _, p := range m.proposals {
		if status == "" || p.Status == status {
			proposals = append(proposals, p)
		}
	}
	return proposals, nil
}

func (m *mockProposalRepository) settle(proposalID, reviewerID uuid.UUID, notes *string, status string) bool {
	if m.forceLostRace {
		return false
	}
	p, ok := m.proposals[proposalID]
	if !ok || p.Status != models.ProposalStatusPending {
		return false
	}
	p.Status = status
	p.ReviewedBy = &reviewerID
	p.ReviewNotes = notes
	return true
}

func (m *mockProposalRepository) MergeAdd(ctx context.Context, proposalID, reviewerID uuid.UUID, notes *string, embedding []float32) (uuid.UUID, bool, error) {
	m.mergeCalls++
	if !m.settle(proposalID, reviewerID, notes, models.ProposalStatusMerged) {
		return uuid.Nil, false, nil
	}
	return uuid.New(), true, nil
}

func (m *mockProposalRepository) MergeReplace(ctx context.Context, proposalID, reviewerID uuid.UUID, notes *string, embedding []float32) (uuid.UUID, bool, error) {
	m.mergeCalls++
	if !m.settle(proposalID, reviewerID, notes, models.ProposalStatusMerged) {
		return uuid.Nil, false, nil
	}
	return uuid.New(), true, nil
}

func (m *mockProposalRepository) MergeDeprecate(ctx context.Context, proposalID, reviewerID uuid.UUID, notes *string) (uuid.UUID, bool, error) {
	m.mergeCalls++
	if !m.settle(proposalID, reviewerID, notes, models.ProposalStatusMerged) {
		return uuid.Nil, false, nil
	}
	p := m.proposals[proposalID]
	if p != nil && p.ReplacingItemID != nil {
		return *p.ReplacingItemID, true, nil
	}
	return uuid.New(), true, nil
}

func (m *mockProposalRepository) RejectConditional(ctx context.Context, proposalID, reviewerID uuid.UUID, notes *string) (bool, error) {
	return m.settle(proposalID, reviewerID, notes, models.ProposalStatusRejected), nil
}

// mockRequestRepository is an in-memory RequestRepository for testing.
type mockRequestRepository struct {
	requests map[uuid.UUID]*models.Request
}

func newMockRequestRepository() *mockRequestRepository {
	return &mockRequestRepository{requests: make(map[uuid.UUID]*models.Request)}
}

func (m *mockRequestRepository) Create(ctx context.Context, request *models.Request) error {
	request.ID = uuid.New()
	m.requests[request.ID] = request
	return nil
}

func (m *mockRequestRepository) GetByID(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	return m.requests[requestID], nil
}

func (m *mockRequestRepository) List(ctx context.Context, status string, limit int) ([]*models.Request, error) {
	var requests []*models.Request
	for _, r := range m.requests {
		if status == "" || r.Status == status {
			requests = append(requests, r)
		}
	}
	return requests, nil
}

func (m *mockRequestRepository) ReviewConditional(ctx context.Context, requestID uuid.UUID, status string, reviewerID uuid.UUID, notes *string) (bool, error) {
	r, ok := m.requests[requestID]
	if !ok || r.Status != models.RequestStatusPending {
		return false, nil
	}
	r.Status = status
	r.ReviewedBy = &reviewerID
	r.ReviewNotes = notes
	return true, nil
}

// mockAuditRepo records inserted events and can be made to fail.
type mockAuditRepo struct {
	events    []*models.AuditEvent
	insertErr error
}

func (m *mockAuditRepo) Insert(ctx context.Context, event *models.AuditEvent) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	event.ID = uuid.New()
	m.events = append(m.events, event)
	return nil
}

func (m *mockAuditRepo) Query(ctx context.Context, q *models.AuditQuery) ([]*models.AuditEvent, error) {
	var events []*models.AuditEvent
	for _, e := range m.events {
		if q.EventType != "" && e.EventType != q.EventType {
			continue
		}
		if q.ResourceType != "" && e.ResourceType != q.ResourceType {
			continue
		}
		if q.ResourceID != nil && e.ResourceID != *q.ResourceID {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// mockEmbedder is a configurable EmbeddingService stub.
type mockEmbedder struct {
	dimension int
	err       error
	calls     []string
	// failTexts makes specific canonical texts fail while others succeed.
	failTexts map[string]error
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dimension: 768}
}

func (m *mockEmbedder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	m.calls = append(m.calls, text)
	if m.err != nil {
		return nil, m.err
	}
	if err, ok := m.failTexts[text]; ok {
		return nil, err
	}
	return make([]float32, m.dimension), nil
}

func (m *mockEmbedder) EncodeCatalogItem(ctx context.Context, name, description, category string) ([]float32, error) {
	return m.EncodeText(ctx, CanonicalItemText(name, description, category))
}

func (m *mockEmbedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var firstErr error
	failed := 0
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		e, err := m.EncodeText(ctx, text)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed++
			continue
		}
		embeddings[i] = e
	}
	if len(texts) > 0 && failed == len(texts) {
		return nil, fmt.Errorf("all %d embedding calls failed: %w", len(texts), firstErr)
	}
	return embeddings, nil
}

func (m *mockEmbedder) Dimension() int {
	return m.dimension
}

// principalContext returns a context carrying a principal with the given role.
func principalContext(role string) (context.Context, *models.Principal) {
	principal := &models.Principal{
		UserID: uuid.New(),
		OrgID:  uuid.New(),
		Role:   role,
	}
	return models.WithPrincipal(context.Background(), principal), principal
}
