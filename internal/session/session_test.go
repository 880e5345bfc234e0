package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigap-dashboard/internal/aggregate"
	"sigap-dashboard/internal/alerts"
	"sigap-dashboard/internal/cache"
	apperrors "sigap-dashboard/internal/common/errors"
	"sigap-dashboard/internal/common/logger"
	"sigap-dashboard/internal/geocode"
	"sigap-dashboard/internal/models"
	"sigap-dashboard/internal/prefetch"
)

// stubBackend is an in-memory double of the REST client. Details are served
// from its map; fullBlock lets a test hold one fetch open mid-flight.
type stubBackend struct {
	mu           sync.Mutex
	props        []models.PropertySummary
	details      map[string]models.PropertyDetail
	listErr      error
	geoErr       error
	failFull     map[string]error
	fullBlock    map[string]chan struct{}
	createErr    error
	created      []models.PropertyCreate
	uploads      []models.DocumentUpload
	deletedDocs  []string
	tokenCleared bool
}

func newStubBackend(props ...models.PropertySummary) *stubBackend {
	b := &stubBackend{
		props:     props,
		details:   map[string]models.PropertyDetail{},
		failFull:  map[string]error{},
		fullBlock: map[string]chan struct{}{},
	}
	for _, p := range props {
		b.details[p.ID] = detailFixture(p.ID)
	}
	return b
}

func detailFixture(id string) models.PropertyDetail {
	return models.PropertyDetail{
		ID:        id,
		Code:      "C-" + id,
		Documents: []models.Document{{ID: "d-" + id, Category: models.DocEscritura, Filename: id + ".pdf", Version: 1}},
	}
}

func (b *stubBackend) FetchProperties(ctx context.Context) ([]models.PropertySummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]models.PropertySummary(nil), b.props...), nil
}

func (b *stubBackend) FetchPropertyFull(ctx context.Context, id string) (models.PropertyDetail, error) {
	b.mu.Lock()
	block := b.fullBlock[id]
	failErr := b.failFull[id]
	detail, ok := b.details[id]
	b.mu.Unlock()

	if block != nil {
		<-block
		b.mu.Lock()
		detail, ok = b.details[id]
		b.mu.Unlock()
	}
	if failErr != nil {
		return models.PropertyDetail{}, failErr
	}
	if !ok {
		return models.PropertyDetail{}, apperrors.NewNotFoundError("property", id)
	}
	return detail, nil
}

func (b *stubBackend) FetchGeoJSON(ctx context.Context) (models.GeoDocument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.geoErr != nil {
		return models.GeoDocument{}, b.geoErr
	}
	doc := models.EmptyGeoDocument()
	for _, p := range b.props {
		doc.Features = append(doc.Features, models.GeoFeature{
			Type:       "Feature",
			Properties: map[string]interface{}{"id": p.ID},
		})
	}
	return doc, nil
}

func (b *stubBackend) CreateProperty(ctx context.Context, payload models.PropertyCreate) (models.PropertySummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, payload)
	if b.createErr != nil {
		return models.PropertySummary{}, b.createErr
	}
	summary := models.PropertySummary{
		ID:          "new-" + payload.Code,
		Code:        payload.Code,
		AddressLine: payload.AddressLine,
		Comuna:      payload.Comuna,
		Region:      payload.Region,
		Type:        payload.Type,
		State:       payload.State,
		RentValue:   payload.RentValue,
		SaleValue:   payload.SaleValue,
		Lat:         payload.Lat,
		Lon:         payload.Lon,
	}
	b.props = append(b.props, summary)
	return summary, nil
}

func (b *stubBackend) DeleteProperty(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.props[:0:0]
	for _, p := range b.props {
		if p.ID != id {
			next = append(next, p)
		}
	}
	b.props = next
	delete(b.details, id)
	return nil
}

func (b *stubBackend) UploadDocument(ctx context.Context, upload models.DocumentUpload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, upload)
	detail := b.details[upload.EntityID]
	detail.Documents = append(detail.Documents, models.Document{
		ID: "d-up-" + upload.Filename, Category: upload.Category, Filename: upload.Filename, Version: 1,
	})
	b.details[upload.EntityID] = detail
	return nil
}

func (b *stubBackend) ReplaceDocument(ctx context.Context, upload models.DocumentUpload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, upload)
	detail := b.details[upload.EntityID]
	for i, doc := range detail.Documents {
		if doc.ID == upload.ReplacesID {
			detail.Documents[i].Filename = upload.Filename
			detail.Documents[i].Version++
		}
	}
	b.details[upload.EntityID] = detail
	return nil
}

func (b *stubBackend) DeleteDocument(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletedDocs = append(b.deletedDocs, id)
	return nil
}

func (b *stubBackend) DownloadDocument(ctx context.Context, id string) ([]byte, error) {
	return []byte("pdf-bytes-" + id), nil
}

func (b *stubBackend) ClearToken() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokenCleared = true
}

type stubGeocoder struct{ result geocode.Result }

func (g stubGeocoder) Resolve(ctx context.Context, address string) geocode.Result {
	return g.result
}

func summary(id string) models.PropertySummary {
	return models.PropertySummary{ID: id, Code: "C-" + id, State: models.StateArrendada, Type: models.TypeCasa, Comuna: "Las Condes"}
}

func newTestSession(t *testing.T, backend *stubBackend) *Session {
	t.Helper()
	engine := alerts.NewEngine("America/Santiago", 30, func() time.Time {
		return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	})
	geocoder := stubGeocoder{result: geocode.Result{Lat: -33.4566, Lon: -70.5984, Comuna: "Ñuñoa", Region: "Región Metropolitana"}}
	return New(backend, geocoder, cache.NewMemoryStore(), engine, logger.NewTestLogger(t), prefetch.Options{MaxConcurrent: 4})
}

func TestLoad_HydratesListGeoAndDetails(t *testing.T) {
	backend := newStubBackend(summary("p1"), summary("p2"))
	s := newTestSession(t, backend)

	require.NoError(t, s.Load(context.Background()))
	s.Wait()

	assert.Len(t, s.Properties(), 2)
	assert.Len(t, s.Geo().Features, 2)
	assert.Equal(t, models.AlertTally{}, s.Alerts(), "hydrated portfolio with documents raises nothing")
}

func TestLoad_TallyCountsMissingDetailsUntilPrefetchSettles(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	backend.fullBlock["p1"] = make(chan struct{})
	s := newTestSession(t, backend)

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 1, s.Alerts().IncompleteDocs, "absent detail counts as incomplete docs")

	close(backend.fullBlock["p1"])
	s.Wait()
	assert.Equal(t, 0, s.Alerts().IncompleteDocs, "resolved detail clears the counter")
}

func TestLoad_FailureLeavesPreviousStateUntouched(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()

	backend.mu.Lock()
	backend.listErr = apperrors.NewFetchFailedError("/properties", context.DeadlineExceeded)
	backend.mu.Unlock()

	err := s.Load(context.Background())
	require.Error(t, err)
	assert.Len(t, s.Properties(), 1, "previous list survives a failed reload")
}

func TestLoad_UnauthorizedTearsSessionDown(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	backend.listErr = apperrors.NewUnauthorizedError("route: /properties")
	s := newTestSession(t, backend)

	err := s.Load(context.Background())
	require.True(t, apperrors.IsUnauthorized(err))
	assert.True(t, backend.tokenCleared)
	assert.Empty(t, s.Properties())
}

func TestLoad_UnauthorizedOnGeoTearsDownDespiteListFailure(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	backend.listErr = apperrors.NewFetchFailedError("/properties", context.DeadlineExceeded)
	backend.geoErr = apperrors.NewUnauthorizedError("route: /geojson")
	s := newTestSession(t, backend)

	err := s.Load(context.Background())
	require.True(t, apperrors.IsUnauthorized(err), "the 401 wins over the transient list error")
	assert.True(t, backend.tokenCleared)
	assert.Empty(t, s.Properties())
}

func TestSelectProperty_CachesAndReturnsDetail(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()

	detail, err := s.SelectProperty(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", detail.ID)
	assert.Equal(t, "p1", s.Selected())

	_, err = s.SelectProperty(context.Background(), "ghost")
	require.Error(t, err)
}

func TestSelectProperty_FetchFailureFallsBackToCachedEntry(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()

	backend.mu.Lock()
	backend.failFull["p1"] = apperrors.NewFetchFailedError("/properties/p1/full", context.DeadlineExceeded)
	backend.mu.Unlock()

	detail, err := s.SelectProperty(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, "p1", detail.ID, "stale cached detail keeps rendering")
}

func TestContractParties_PrefillsFromActiveContract(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	detail := detailFixture("p1")
	detail.CurrentContract = &models.Contract{
		ID:     "ct1",
		State:  models.ContractVigente,
		Tenant: &models.Party{ID: "t1", Name: "Ana Rojas"},
		Owner:  &models.Party{ID: "o1", Name: "Luis Soto"},
	}
	backend.details["p1"] = detail
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()

	tenant, owner := s.ContractParties(context.Background(), "p1")
	require.NotNil(t, tenant)
	require.NotNil(t, owner)
	assert.Equal(t, "t1", tenant.ID)
	assert.Equal(t, "o1", owner.ID)

	// The prefill fetches on demand when the detail is not cached yet.
	require.NoError(t, s.store.Invalidate(context.Background(), "p1"))
	tenant, owner = s.ContractParties(context.Background(), "p1")
	require.NotNil(t, tenant)
	require.NotNil(t, owner)
	assert.True(t, s.store.Has(context.Background(), "p1"), "fetched detail lands in the store")
}

func TestCreateProperty_GeneratesCodeAndUsesGeocoder(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()

	created, err := s.CreateProperty(context.Background(), CreateInput{AddressLine: "Irarrázaval 3000"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(created.Code, "PRP-"), created.Code)
	assert.Equal(t, "Ñuñoa", created.Comuna, "commune comes from the geocoder")
	assert.Equal(t, models.StateDisponible, created.State)

	props := s.Properties()
	require.Len(t, props, 2)
	assert.Equal(t, created.ID, props[0].ID, "created property is prepended")
	assert.Equal(t, created.ID, s.Selected())
	assert.False(t, s.store.Has(context.Background(), created.ID), "no detail entry until prefetch or selection")
}

func TestCreateProperty_ValidationAndBackendRejection(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()

	_, err := s.CreateProperty(context.Background(), CreateInput{AddressLine: "   "})
	require.Error(t, err)
	assert.Empty(t, backend.created, "validation failures never reach the backend")

	backend.mu.Lock()
	backend.createErr = apperrors.NewMutationFailedError("create-property", 409, "codigo duplicado")
	backend.mu.Unlock()

	_, err = s.CreateProperty(context.Background(), CreateInput{AddressLine: "Apoquindo 1", Code: "DUP-1"})
	require.Error(t, err)
	assert.Len(t, s.Properties(), 1, "rejected mutation leaves the list untouched")
}

func TestDeleteProperty_RemovesEverywhere(t *testing.T) {
	backend := newStubBackend(summary("p1"), summary("p2"))
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()
	_, err := s.SelectProperty(context.Background(), "p2")
	require.NoError(t, err)

	require.NoError(t, s.DeleteProperty(context.Background(), "p2"))

	props := s.Properties()
	require.Len(t, props, 1)
	assert.Equal(t, "p1", props[0].ID)
	assert.False(t, s.store.Has(context.Background(), "p2"))
	assert.Empty(t, s.Selected(), "open detail view closes on delete")
	assert.Len(t, s.Geo().Features, 1, "map projection refreshed")
}

func TestPrefetchResultForDeletedPropertyIsDropped(t *testing.T) {
	backend := newStubBackend(summary("p1"), summary("p2"))
	blocked := make(chan struct{})
	backend.fullBlock["p2"] = blocked
	s := newTestSession(t, backend)

	require.NoError(t, s.Load(context.Background()))
	require.NoError(t, s.DeleteProperty(context.Background(), "p2"))

	close(blocked)
	s.Wait()

	assert.True(t, s.store.Has(context.Background(), "p1"))
	assert.False(t, s.store.Has(context.Background(), "p2"), "slow fetch must not resurrect a deleted property")
}

func TestUploadDocument_LeaseContractRequiresParties(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()

	err := s.UploadDocument(context.Background(), models.DocumentUpload{
		EntityID: "p1",
		Category: models.DocContratoArriendo,
		Filename: "contrato.pdf",
		Content:  []byte("%PDF"),
	})
	require.Error(t, err)
	assert.Empty(t, backend.uploads)
}

func TestUploadDocument_RefreshesAffectedDetail(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()

	err := s.UploadDocument(context.Background(), models.DocumentUpload{
		EntityID: "p1",
		Category: models.DocInventario,
		Filename: "inventario.pdf",
		Content:  []byte("%PDF"),
	})
	require.NoError(t, err)

	detail, ok := s.store.Get(context.Background(), "p1")
	require.True(t, ok, "detail is eagerly re-fetched after the upload")
	assert.Len(t, detail.Documents, 2)
}

func TestReplaceDocument_BumpsVersionInRefreshedDetail(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()

	err := s.ReplaceDocument(context.Background(), models.DocumentUpload{
		EntityID:   "p1",
		ReplacesID: "d-p1",
		Filename:   "escritura-v2.pdf",
		Content:    []byte("%PDF"),
	})
	require.NoError(t, err)

	detail, ok := s.store.Get(context.Background(), "p1")
	require.True(t, ok)
	require.Len(t, detail.Documents, 1)
	assert.Equal(t, 2, detail.Documents[0].Version)
	assert.Equal(t, "escritura-v2.pdf", detail.Documents[0].Filename)
}

func TestDeleteDocument_RefreshesOwningProperty(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()

	require.NoError(t, s.DeleteDocument(context.Background(), "d-p1", "p1"))
	assert.Equal(t, []string{"d-p1"}, backend.deletedDocs)
	assert.True(t, s.store.Has(context.Background(), "p1"), "refreshed entry is back in the store")
}

func TestSeedDemo_SkipsFailedSamplesAndReloads(t *testing.T) {
	backend := newStubBackend()
	s := newTestSession(t, backend)

	require.NoError(t, s.SeedDemo(context.Background()))
	s.Wait()

	assert.Len(t, backend.created, 3)
	codes := make([]string, 0, 3)
	for _, c := range backend.created {
		codes = append(codes, c.Code)
	}
	assert.ElementsMatch(t, []string{"CASA-001", "DEP-045", "OFI-220"}, codes)
	assert.Len(t, s.Properties(), 3, "list reloaded after seeding")
}

func TestLogout_ResetsEverything(t *testing.T) {
	backend := newStubBackend(summary("p1"))
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()
	_, err := s.SelectProperty(context.Background(), "p1")
	require.NoError(t, err)

	s.Logout(context.Background())

	assert.True(t, backend.tokenCleared)
	assert.Empty(t, s.Properties())
	assert.Empty(t, s.Geo().Features)
	assert.Empty(t, s.Selected())
	assert.Equal(t, models.AlertTally{}, s.Alerts())
	assert.Empty(t, s.store.Keys(context.Background()))
}

func TestDashboard_FilterNarrowsEverythingButAlerts(t *testing.T) {
	p1 := summary("p1")
	p2 := summary("p2")
	p2.State = models.StateDisponible
	p2.Comuna = "Providencia"
	backend := newStubBackend(p1, p2)
	backend.details["p2"] = models.PropertyDetail{ID: "p2", Code: "C-p2"} // no documents
	s := newTestSession(t, backend)
	require.NoError(t, s.Load(context.Background()))
	s.Wait()

	view := s.Dashboard(aggregate.Filter{State: models.StateDisponible})

	require.Len(t, view.Properties, 1)
	assert.Equal(t, "p2", view.Properties[0].ID)
	require.Len(t, view.Geo.Features, 1)
	assert.Equal(t, "p2", view.Geo.Features[0].PropertyID())
	assert.Equal(t, 1, view.Values.Total)
	assert.Equal(t, 1, s.Alerts().NoContract, "available property without contract")
	assert.Equal(t, 1, view.Alerts.IncompleteDocs, "tally stays portfolio-wide under filters")
	assert.False(t, view.GeneratedAt.IsZero())
}
