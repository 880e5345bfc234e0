// Package backend is the typed client for the property-management REST API.
// Every request carries the session bearer token; a 401 anywhere is surfaced
// as the distinguished unauthorized error so the session can tear itself down.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"sigap-dashboard/internal/common/config"
	apperrors "sigap-dashboard/internal/common/errors"
	"sigap-dashboard/internal/common/httpx"
	"sigap-dashboard/internal/common/logger"
	"sigap-dashboard/internal/common/metrics"
	"sigap-dashboard/internal/common/observability"
	"sigap-dashboard/internal/models"
)

type Client struct {
	baseURL string
	http    *httpx.Client
	log     logger.Logger
	obs     *observability.Observability

	mu    sync.RWMutex
	token string
}

func NewClient(cfg config.BackendConfig, log logger.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    httpx.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		log:     log,
		token:   cfg.Token,
	}
}

// SetObservability attaches the OpenTelemetry recorder for detail fetches.
func (c *Client) SetObservability(obs *observability.Observability) {
	c.obs = obs
}

// SetToken installs the session credential used on every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken drops the session credential, part of logout teardown.
func (c *Client) ClearToken() {
	c.SetToken("")
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do runs one request and hands back the raw body for 2xx responses.
// Non-2xx responses become StandardErrors: 401 is the session-fatal signal,
// everything else keeps the backend's status and detail message.
func (c *Client) do(ctx context.Context, method, route string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequest(method, c.baseURL+route, body)
	if err != nil {
		return nil, apperrors.Normalize(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(route, "error").Inc()
		return nil, apperrors.NewFetchFailedError(route, err)
	}
	defer resp.Body.Close()

	metrics.BackendRequests.WithLabelValues(route, statusClass(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewFetchFailedError(route, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, apperrors.NewUnauthorizedError(fmt.Sprintf("route: %s", route))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &httpError{status: resp.StatusCode, detail: extractDetail(raw)}
	}
	return raw, nil
}

// httpError is the intermediate non-2xx result; callers wrap it into the
// fetch or mutation error their path requires.
type httpError struct {
	status int
	detail string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.status, e.detail)
}

// asMutationError converts any client error into the surfaced mutation form,
// except for unauthorized which always stays session-fatal.
func asMutationError(kind string, err error) error {
	if apperrors.IsUnauthorized(err) {
		return err
	}
	if he, ok := err.(*httpError); ok {
		return apperrors.NewMutationFailedError(kind, he.status, he.detail)
	}
	return apperrors.NewMutationFailedError(kind, 0, err.Error())
}

// asFetchError converts any client error into the locally-recovered fetch form.
func asFetchError(route string, err error) error {
	if apperrors.IsUnauthorized(err) {
		return err
	}
	return apperrors.NewFetchFailedError(route, err)
}

// extractDetail pulls the backend's {"detail": ...} message when present.
func extractDetail(raw []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return string(payload.Detail)
}

func statusClass(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// FetchProperties loads the current property list.
func (c *Client) FetchProperties(ctx context.Context) ([]models.PropertySummary, error) {
	raw, err := c.do(ctx, http.MethodGet, "/properties", nil, "")
	if err != nil {
		return nil, asFetchError("/properties", err)
	}
	var props []models.PropertySummary
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, apperrors.NewMalformedResponseError("/properties", err.Error())
	}
	return props, nil
}

// FetchPropertyFull loads and shape-checks one full detail record.
func (c *Client) FetchPropertyFull(ctx context.Context, id string) (models.PropertyDetail, error) {
	route := fmt.Sprintf("/properties/%s/full", id)
	start := time.Now()

	raw, err := c.do(ctx, http.MethodGet, route, nil, "")
	if err != nil {
		c.recordFetch(ctx, start, "error")
		return models.PropertyDetail{}, asFetchError(route, err)
	}
	if err := validateDetailPayload(raw); err != nil {
		c.recordFetch(ctx, start, "malformed")
		return models.PropertyDetail{}, apperrors.NewMalformedResponseError(route, err.Error())
	}
	var detail models.PropertyDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		c.recordFetch(ctx, start, "malformed")
		return models.PropertyDetail{}, apperrors.NewMalformedResponseError(route, err.Error())
	}
	if detail.ID == "" {
		detail.ID = id
	}
	c.recordFetch(ctx, start, "ok")
	return detail, nil
}

func (c *Client) recordFetch(ctx context.Context, start time.Time, outcome string) {
	if c.obs == nil {
		return
	}
	c.obs.RecordFetch(ctx, outcome)
	c.obs.RecordFetchDuration(ctx, time.Since(start), outcome)
}

// FetchGeoJSON loads the map-rendering projection.
func (c *Client) FetchGeoJSON(ctx context.Context) (models.GeoDocument, error) {
	raw, err := c.do(ctx, http.MethodGet, "/properties/geojson", nil, "")
	if err != nil {
		return models.GeoDocument{}, asFetchError("/properties/geojson", err)
	}
	var doc models.GeoDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.GeoDocument{}, apperrors.NewMalformedResponseError("/properties/geojson", err.Error())
	}
	return doc, nil
}

// CreateProperty creates one property and returns the backend's summary.
func (c *Client) CreateProperty(ctx context.Context, payload models.PropertyCreate) (models.PropertySummary, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return models.PropertySummary{}, apperrors.Normalize(err)
	}
	raw, err := c.do(ctx, http.MethodPost, "/properties", bytes.NewReader(body), "application/json")
	if err != nil {
		return models.PropertySummary{}, asMutationError("create-property", err)
	}
	var created models.PropertySummary
	if err := json.Unmarshal(raw, &created); err != nil {
		return models.PropertySummary{}, apperrors.NewMalformedResponseError("/properties", err.Error())
	}
	return created, nil
}

// DeleteProperty deletes one property.
func (c *Client) DeleteProperty(ctx context.Context, id string) error {
	route := fmt.Sprintf("/properties/%s", id)
	if _, err := c.do(ctx, http.MethodDelete, route, nil, ""); err != nil {
		return asMutationError("delete-property", err)
	}
	return nil
}
