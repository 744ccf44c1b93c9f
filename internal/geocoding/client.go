package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mbsoft/ohmy-tracks/internal/routes"
	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

// Circle is a circular search bias centered on a previously resolved stop.
type Circle struct {
	Lat     float64
	Lng     float64
	RadiusM int
}

// Request is one geocoding lookup. Location-name searches suppress the
// fallback/score parameters the address search uses, and may carry a
// proximity circle.
type Request struct {
	Query                string
	IsLocationNameSearch bool
	Proximity            *Circle
}

// Geocoder resolves a query to coordinates. Implementations return an
// error only for transport-level problems; "no results" is a successful
// call with a failure result.
type Geocoder interface {
	Geocode(ctx context.Context, req Request) (*routes.Geocode, error)
}

// Client calls the external discover geocoding API over HTTPS GET.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	addressScore float64
	logger       *logger.Logger
}

// NewClient creates a geocoding API client with a fixed request timeout.
func NewClient(baseURL, apiKey string, addressScore float64, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		apiKey:       apiKey,
		addressScore: addressScore,
		logger:       log.Named("geocode-cli"),
	}
}

// discoverResponse is the subset of the API response the resolver needs.
// The first item is taken unconditionally; there is no re-ranking.
type discoverResponse struct {
	Items []struct {
		Title    string `json:"title"`
		Position struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"position"`
		Address struct {
			Label string `json:"label"`
		} `json:"address"`
		Scoring struct {
			QueryScore float64 `json:"queryScore"`
		} `json:"scoring"`
	} `json:"items"`
}

// Geocode executes one lookup. Empty queries and empty result sets come
// back as failure results, not errors; only request construction or
// transport failures return an error.
func (c *Client) Geocode(ctx context.Context, r Request) (*routes.Geocode, error) {
	if r.Query == "" {
		return &routes.Geocode{Success: false, Error: "Empty address"}, nil
	}

	params := url.Values{}
	params.Set("q", r.Query)
	params.Set("key", c.apiKey)
	if !r.IsLocationNameSearch {
		params.Set("fallback", "true")
		params.Set("score", strconv.FormatFloat(c.addressScore, 'f', -1, 64))
	}
	if r.Proximity != nil {
		params.Set("in", fmt.Sprintf("circle:%v,%v;r=%d", r.Proximity.Lat, r.Proximity.Lng, r.Proximity.RadiusM))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Geocoding request",
		logger.String("query", r.Query),
		logger.Bool("location_name_search", r.IsLocationNameSearch),
		logger.Bool("proximity_hint", r.Proximity != nil))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var decoded discoverResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if len(decoded.Items) == 0 {
		c.logger.Debug("No geocoding results", logger.String("query", r.Query))
		return &routes.Geocode{
			Success: false,
			Address: r.Query,
			Error:   "No results found",
		}, nil
	}

	first := decoded.Items[0]
	formatted := first.Title
	if formatted == "" {
		formatted = first.Address.Label
	}
	if formatted == "" {
		formatted = r.Query
	}

	return &routes.Geocode{
		Success:          true,
		Address:          r.Query,
		Latitude:         first.Position.Lat,
		Longitude:        first.Position.Lng,
		FormattedAddress: formatted,
		Confidence:       first.Scoring.QueryScore,
	}, nil
}
