package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/catalogai/catalog-engine/pkg/models"
	"github.com/catalogai/catalog-engine/pkg/services"
)

// mockCatalogService is a mock implementation of services.CatalogService.
type mockCatalogService struct {
	searchHits []*models.CatalogSearchHit
	items      []*models.CatalogItem
	item       *models.CatalogItem
	report     *models.RepairReport
	err        error

	lastQuery     string
	lastThreshold float64
	lastLimit     int
	lastInput     *models.NewCatalogItemInput
}

func (m *mockCatalogService) Search(ctx context.Context, query string, threshold float64, limit int) ([]*models.CatalogSearchHit, error) {
	m.lastQuery, m.lastThreshold, m.lastLimit = query, threshold, limit
	return m.searchHits, m.err
}

func (m *mockCatalogService) Get(ctx context.Context, itemID uuid.UUID) (*models.CatalogItem, error) {
	return m.item, m.err
}

func (m *mockCatalogService) List(ctx context.Context, status string, limit int) ([]*models.CatalogItem, error) {
	return m.items, m.err
}

func (m *mockCatalogService) Create(ctx context.Context, input *models.NewCatalogItemInput) (*models.CatalogItem, error) {
	m.lastInput = input
	return m.item, m.err
}

func (m *mockCatalogService) Update(ctx context.Context, itemID uuid.UUID, update *models.CatalogItemUpdate) (*models.CatalogItem, error) {
	return m.item, m.err
}

func (m *mockCatalogService) RepairEmbeddings(ctx context.Context) (*models.RepairReport, error) {
	return m.report, m.err
}

// mockProposalService is a mock implementation of services.ProposalService.
type mockProposalService struct {
	proposal  *models.Proposal
	proposals []*models.Proposal
	result    *services.ReviewProposalResult
	err       error

	lastInput   *services.CreateProposalInput
	lastSubmit  *services.CreateProposalInput
	lastApprove bool
}

func (m *mockProposalService) Create(ctx context.Context, input *services.CreateProposalInput) (*models.Proposal, error) {
	m.lastInput = input
	return m.proposal, m.err
}

func (m *mockProposalService) SubmitNewItem(ctx context.Context, input *services.CreateProposalInput) (*models.Proposal, error) {
	m.lastSubmit = input
	return m.proposal, m.err
}

func (m *mockProposalService) Get(ctx context.Context, proposalID uuid.UUID) (*models.Proposal, error) {
	return m.proposal, m.err
}

func (m *mockProposalService) List(ctx context.Context, status string, limit int) ([]*models.Proposal, error) {
	return m.proposals, m.err
}

func (m *mockProposalService) Review(ctx context.Context, proposalID uuid.UUID, approve bool, notes *string) (*services.ReviewProposalResult, error) {
	m.lastApprove = approve
	return m.result, m.err
}

// mockEnrichmentService is a mock implementation of services.EnrichmentService.
type mockEnrichmentService struct {
	product  *models.EnrichedProduct
	products []*models.EnrichedProduct
	err      error

	lastName  string
	lastNames []string
}

func (m *mockEnrichmentService) Enrich(ctx context.Context, productName string) (*models.EnrichedProduct, error) {
	m.lastName = productName
	return m.product, m.err
}

func (m *mockEnrichmentService) EnrichBatch(ctx context.Context, productNames []string) ([]*models.EnrichedProduct, error) {
	m.lastNames = productNames
	return m.products, m.err
}

func (m *mockEnrichmentService) MaxBatchSize() int { return 20 }
