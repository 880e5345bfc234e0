// Package session owns the dashboard's server-side state for one
// authenticated user: the property list, the map projection, the detail store
// and the derived alert tally. Every mutation flows through here so that
// cache invalidation, eager refresh and recomputation happen in one place.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sigap-dashboard/internal/aggregate"
	"sigap-dashboard/internal/alerts"
	"sigap-dashboard/internal/cache"
	apperrors "sigap-dashboard/internal/common/errors"
	"sigap-dashboard/internal/common/logger"
	"sigap-dashboard/internal/common/metrics"
	"sigap-dashboard/internal/geocode"
	"sigap-dashboard/internal/models"
	"sigap-dashboard/internal/prefetch"
)

// Backend is the slice of the REST client the session drives.
type Backend interface {
	FetchProperties(ctx context.Context) ([]models.PropertySummary, error)
	FetchPropertyFull(ctx context.Context, id string) (models.PropertyDetail, error)
	FetchGeoJSON(ctx context.Context) (models.GeoDocument, error)
	CreateProperty(ctx context.Context, payload models.PropertyCreate) (models.PropertySummary, error)
	DeleteProperty(ctx context.Context, id string) error
	UploadDocument(ctx context.Context, upload models.DocumentUpload) error
	ReplaceDocument(ctx context.Context, upload models.DocumentUpload) error
	DeleteDocument(ctx context.Context, id string) error
	DownloadDocument(ctx context.Context, id string) ([]byte, error)
	ClearToken()
}

// Geocoder resolves free-text addresses during property creation.
type Geocoder interface {
	Resolve(ctx context.Context, address string) geocode.Result
}

// CreateInput is what the creation form collects. Everything else in the
// POST payload is derived: coordinates and commune from the geocoder, the
// code from a generated fallback when left blank.
type CreateInput struct {
	Code        string
	AddressLine string
	Type        string
	RentValue   *float64
	SaleValue   *float64
}

type Session struct {
	backend    Backend
	geocoder   Geocoder
	store      cache.Store
	engine     *alerts.Engine
	prefetcher *prefetch.Prefetcher
	log        logger.Logger

	mu         sync.RWMutex
	props      []models.PropertySummary
	geo        models.GeoDocument
	tally      models.AlertTally
	payments   models.PaymentsSummary
	selectedID string

	bg sync.WaitGroup
}

func New(backend Backend, geocoder Geocoder, store cache.Store, engine *alerts.Engine, log logger.Logger, opts prefetch.Options) *Session {
	s := &Session{
		backend:  backend,
		geocoder: geocoder,
		store:    store,
		engine:   engine,
		log:      log,
		geo:      models.EmptyGeoDocument(),
	}
	opts.OnUnauthorized = func() { s.teardown("prefetch") }
	s.prefetcher = prefetch.New(store, backend, log, opts)
	return s
}

// Load replaces the property list and the map projection, prunes the detail
// store against the new list, recomputes the tally from whatever is already
// cached, and starts a background prefetch pass for the missing details. The
// pass recomputes again once it settles. On any load error the previous
// state stays untouched.
func (s *Session) Load(ctx context.Context) error {
	var (
		wg      sync.WaitGroup
		props   []models.PropertySummary
		geo     models.GeoDocument
		propErr error
		geoErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		props, propErr = s.backend.FetchProperties(ctx)
	}()
	go func() {
		defer wg.Done()
		geo, geoErr = s.backend.FetchGeoJSON(ctx)
	}()
	wg.Wait()

	// A 401 on either fetch is session-fatal even when the other fetch
	// failed first for a transient reason, so both errors are inspected
	// before one is returned.
	for _, err := range []error{propErr, geoErr} {
		if err != nil && apperrors.IsUnauthorized(err) {
			s.teardown("load")
			return err
		}
	}
	if propErr != nil {
		return propErr
	}
	if geoErr != nil {
		return geoErr
	}

	live := make(map[string]bool, len(props))
	ids := make([]string, 0, len(props))
	for _, p := range props {
		live[p.ID] = true
		ids = append(ids, p.ID)
	}

	s.mu.Lock()
	s.props = props
	s.geo = geo
	s.mu.Unlock()

	cache.Prune(ctx, s.store, live)
	s.recompute(ctx)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		s.prefetcher.Run(context.Background(), ids, s.isLive)
		s.recompute(context.Background())
	}()

	s.log.Info("portfolio loaded", map[string]interface{}{
		"properties": len(props),
		"features":   len(geo.Features),
	})
	return nil
}

// Wait blocks until every background prefetch pass has settled. Used by
// shutdown and by callers that need a fully hydrated tally.
func (s *Session) Wait() {
	s.bg.Wait()
}

// SelectProperty makes id the open detail view and fetches its full record.
// The returned detail is read back from the store after the fetch settles, so
// a concurrent writer of the same id wins cleanly. When the fetch fails but a
// cached entry exists, that entry is returned alongside the error so the
// caller can keep rendering stale data.
func (s *Session) SelectProperty(ctx context.Context, id string) (models.PropertyDetail, error) {
	if !s.isLive(id) {
		return models.PropertyDetail{}, apperrors.NewNotFoundError("property", id)
	}

	s.mu.Lock()
	s.selectedID = id
	s.mu.Unlock()

	detail, err := s.backend.FetchPropertyFull(ctx, id)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			s.teardown("select")
			return models.PropertyDetail{}, err
		}
		if cached, ok := s.store.Get(ctx, id); ok {
			return cached, err
		}
		return models.PropertyDetail{}, err
	}

	if s.isLive(id) {
		if putErr := s.store.Put(ctx, id, detail); putErr != nil {
			s.log.Warn("failed to cache selected detail", map[string]interface{}{
				"id":    id,
				"error": putErr.Error(),
			})
		}
	}
	s.recompute(ctx)

	if cached, ok := s.store.Get(ctx, id); ok {
		return cached, nil
	}
	return detail, nil
}

// ContractParties returns the tenant and owner of the property's active
// contract, the prefill for lease-document uploads. When the detail is not
// cached yet it is fetched on demand; any failure just yields no prefill.
func (s *Session) ContractParties(ctx context.Context, id string) (tenant, owner *models.Party) {
	detail, ok := s.store.Get(ctx, id)
	if !ok {
		fetched, err := s.backend.FetchPropertyFull(ctx, id)
		if err != nil {
			if apperrors.IsUnauthorized(err) {
				s.teardown("prefill")
			}
			return nil, nil
		}
		if s.isLive(id) {
			_ = s.store.Put(ctx, id, fetched)
		}
		detail = fetched
	}
	if detail.CurrentContract == nil {
		return nil, nil
	}
	return detail.CurrentContract.Tenant, detail.CurrentContract.Owner
}

// CreateProperty geocodes the address, posts the new record and prepends the
// backend's echo to the list. The created property gets no detail entry; the
// next prefetch pass or selection fills it.
func (s *Session) CreateProperty(ctx context.Context, input CreateInput) (models.PropertySummary, error) {
	const kind = "create-property"

	if strings.TrimSpace(input.AddressLine) == "" {
		return models.PropertySummary{}, s.mutationDone(kind,
			apperrors.NewMutationFailedError(kind, 400, "address line is required"))
	}

	code := strings.TrimSpace(input.Code)
	if code == "" {
		code = generatedCode()
	}
	propType := input.Type
	if propType == "" {
		propType = models.TypeCasa
	}

	resolved := s.geocoder.Resolve(ctx, input.AddressLine)
	payload := models.PropertyCreate{
		Code:        code,
		AddressLine: strings.TrimSpace(input.AddressLine),
		Comuna:      resolved.Comuna,
		Region:      resolved.Region,
		Type:        propType,
		State:       models.StateDisponible,
		RentValue:   input.RentValue,
		SaleValue:   input.SaleValue,
		Lat:         &resolved.Lat,
		Lon:         &resolved.Lon,
	}

	created, err := s.backend.CreateProperty(ctx, payload)
	if err != nil {
		return models.PropertySummary{}, s.mutationDone(kind, err)
	}

	s.mu.Lock()
	s.props = append([]models.PropertySummary{created}, s.props...)
	s.selectedID = created.ID
	s.mu.Unlock()

	s.refreshGeo(ctx)
	s.recompute(ctx)
	return created, s.mutationDone(kind, nil)
}

// DeleteProperty removes the record everywhere it is visible: the backend,
// the list, the map, the detail store and the open detail view.
func (s *Session) DeleteProperty(ctx context.Context, id string) error {
	const kind = "delete-property"

	if err := s.backend.DeleteProperty(ctx, id); err != nil {
		return s.mutationDone(kind, err)
	}

	s.mu.Lock()
	next := s.props[:0:0]
	for _, p := range s.props {
		if p.ID != id {
			next = append(next, p)
		}
	}
	s.props = next
	if s.selectedID == id {
		s.selectedID = ""
	}
	s.mu.Unlock()

	if err := s.store.Invalidate(ctx, id); err != nil {
		s.log.Warn("failed to invalidate deleted property", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
	}

	s.refreshGeo(ctx)
	s.recompute(ctx)
	return s.mutationDone(kind, nil)
}

// UploadDocument attaches a file to a property. Lease-contract uploads must
// carry the tenant and owner ids. On success the affected detail record is
// invalidated and eagerly re-fetched so the new document and any contract the
// backend created from it become visible immediately.
func (s *Session) UploadDocument(ctx context.Context, upload models.DocumentUpload) error {
	const kind = "upload-document"

	if upload.Category == models.DocContratoArriendo && (upload.TenantID == "" || upload.OwnerID == "") {
		return s.mutationDone(kind,
			apperrors.NewMutationFailedError(kind, 400, "lease-contract uploads require tenant and owner"))
	}

	if err := s.backend.UploadDocument(ctx, upload); err != nil {
		return s.mutationDone(kind, err)
	}
	s.refreshDetail(ctx, upload.EntityID)
	return s.mutationDone(kind, nil)
}

// ReplaceDocument re-uploads the file behind an existing document, bumping
// its version. upload.EntityID names the property whose detail to refresh.
func (s *Session) ReplaceDocument(ctx context.Context, upload models.DocumentUpload) error {
	const kind = "replace-document"

	if err := s.backend.ReplaceDocument(ctx, upload); err != nil {
		return s.mutationDone(kind, err)
	}
	s.refreshDetail(ctx, upload.EntityID)
	return s.mutationDone(kind, nil)
}

// DeleteDocument removes one document from the property it belongs to.
func (s *Session) DeleteDocument(ctx context.Context, docID, propertyID string) error {
	const kind = "delete-document"

	if err := s.backend.DeleteDocument(ctx, docID); err != nil {
		return s.mutationDone(kind, err)
	}
	s.refreshDetail(ctx, propertyID)
	return s.mutationDone(kind, nil)
}

// DownloadDocument streams back the stored file bytes.
func (s *Session) DownloadDocument(ctx context.Context, docID string) ([]byte, error) {
	raw, err := s.backend.DownloadDocument(ctx, docID)
	if err != nil && apperrors.IsUnauthorized(err) {
		s.teardown("download")
	}
	return raw, err
}

// SeedDemo creates a small sample portfolio for empty environments. Per-item
// failures (duplicate codes on re-seed, mostly) are logged and skipped; the
// list and map are reloaded afterwards regardless.
func (s *Session) SeedDemo(ctx context.Context) error {
	for _, sample := range demoProperties() {
		if _, err := s.backend.CreateProperty(ctx, sample); err != nil {
			if apperrors.IsUnauthorized(err) {
				s.teardown("seed")
				return err
			}
			s.log.Warn("demo sample skipped", map[string]interface{}{
				"codigo": sample.Code,
				"error":  err.Error(),
			})
		}
	}
	return s.Load(ctx)
}

// Logout tears the whole session down: credential, list, map, detail store,
// tally and selection all reset to their pre-login state.
func (s *Session) Logout(ctx context.Context) {
	s.backend.ClearToken()
	if err := s.store.Reset(ctx); err != nil {
		s.log.Warn("detail store reset failed", map[string]interface{}{"error": err.Error()})
	}

	s.mu.Lock()
	s.props = nil
	s.geo = models.EmptyGeoDocument()
	s.tally = models.AlertTally{}
	s.payments = models.PaymentsSummary{}
	s.selectedID = ""
	s.mu.Unlock()
}

// Properties returns a copy of the current list.
func (s *Session) Properties() []models.PropertySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PropertySummary(nil), s.props...)
}

// Geo returns the current map projection.
func (s *Session) Geo() models.GeoDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.geo
}

// Alerts returns the last computed tally.
func (s *Session) Alerts() models.AlertTally {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tally
}

// Selected returns the id of the open detail view, or "".
func (s *Session) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// Prefetching reports whether a background detail pass is still running.
func (s *Session) Prefetching() bool {
	return s.prefetcher.InFlight()
}

func (s *Session) isLive(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.props {
		if p.ID == id {
			return true
		}
	}
	return false
}

// recompute re-derives the tally and the payments summary from the property
// list and a store snapshot. Full recomputation on every change; no
// incremental bookkeeping to drift.
func (s *Session) recompute(ctx context.Context) {
	start := time.Now()
	snapshot := s.store.Snapshot(ctx)
	props := s.Properties()

	tally := s.engine.Compute(props, snapshot)
	payments := aggregate.Payments(snapshot, s.engine.Now())
	metrics.AlertRecomputeDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	s.tally = tally
	s.payments = payments
	s.mu.Unlock()
}

// refreshDetail invalidates and eagerly re-fetches one property's detail
// after a document mutation, then recomputes. A failed re-fetch leaves the
// entry absent for the next pass to retry.
func (s *Session) refreshDetail(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := s.store.Invalidate(ctx, id); err != nil {
		s.log.Warn("detail invalidation failed", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
	}

	detail, err := s.backend.FetchPropertyFull(ctx, id)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			s.teardown("refresh")
			return
		}
		s.log.Warn("detail refresh failed, entry stays absent", map[string]interface{}{
			"id":    id,
			"error": err.Error(),
		})
		s.recompute(ctx)
		return
	}
	if s.isLive(id) {
		if err := s.store.Put(ctx, id, detail); err != nil {
			s.log.Warn("failed to cache refreshed detail", map[string]interface{}{
				"id":    id,
				"error": err.Error(),
			})
		}
	}
	s.recompute(ctx)
}

// refreshGeo reloads the map projection after a mutation that changed the
// portfolio. Best-effort: on failure the stale projection stays until the
// next full load.
func (s *Session) refreshGeo(ctx context.Context) {
	geo, err := s.backend.FetchGeoJSON(ctx)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			s.teardown("geo-refresh")
			return
		}
		s.log.Warn("geojson refresh failed, keeping previous projection", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	s.mu.Lock()
	s.geo = geo
	s.mu.Unlock()
}

// mutationDone records the outcome metric and routes a 401 into teardown.
// Every other failure is returned as-is with session state untouched.
func (s *Session) mutationDone(kind string, err error) error {
	if err == nil {
		metrics.Mutations.WithLabelValues(kind, "ok").Inc()
		return nil
	}
	metrics.Mutations.WithLabelValues(kind, "error").Inc()
	if apperrors.IsUnauthorized(err) {
		s.teardown("mutation " + kind)
	}
	return err
}

func (s *Session) teardown(origin string) {
	s.log.Warn("session credential rejected, tearing down", map[string]interface{}{
		"origin": origin,
	})
	s.Logout(context.Background())
}

func generatedCode() string {
	return "PRP-" + strings.ToUpper(uuid.NewString()[:8])
}

func demoProperties() []models.PropertyCreate {
	f := func(v float64) *float64 { return &v }
	return []models.PropertyCreate{
		{
			Code:        "CASA-001",
			AddressLine: "Av. Apoquindo 4500",
			Comuna:      "Las Condes",
			Region:      "Región Metropolitana",
			Type:        models.TypeCasa,
			State:       models.StateDisponible,
			RentValue:   f(1500000),
			Lat:         f(-33.4172),
			Lon:         f(-70.6048),
		},
		{
			Code:        "DEP-045",
			AddressLine: "Av. Providencia 1208",
			Comuna:      "Providencia",
			Region:      "Región Metropolitana",
			Type:        models.TypeDepartamento,
			State:       models.StateArrendada,
			RentValue:   f(650000),
			Lat:         f(-33.4264),
			Lon:         f(-70.6198),
		},
		{
			Code:        "OFI-220",
			AddressLine: "Rosario Norte 555",
			Comuna:      "Las Condes",
			Region:      "Región Metropolitana",
			Type:        models.TypeOficina,
			State:       models.StateEnVenta,
			SaleValue:   f(8200000000),
			Lat:         f(-33.4089),
			Lon:         f(-70.5713),
		},
	}
}
