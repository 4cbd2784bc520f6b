package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
)

// USGSPassthrough lists the FDSN query parameters forwarded from callers.
var USGSPassthrough = []string{
	"starttime", "endtime",
	"minmagnitude", "maxmagnitude",
	"minlatitude", "maxlatitude", "minlongitude", "maxlongitude",
	"latitude", "longitude",
	"maxradius", "maxradiuskm", "minradius", "minradiuskm",
	"orderby", "limit", "offset",
}

const (
	defaultWindow = 24 * time.Hour
	defaultLimit  = "500"
)

type usgsResponse struct {
	Features json.RawMessage `json:"features"`
}

// USGSClient queries the USGS FDSN event service and returns raw GeoJSON features.
type USGSClient struct {
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
}

func NewUSGSClient(baseURL string, timeout time.Duration, clock clockwork.Clock) *USGSClient {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &USGSClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clock,
	}
}

// Query forwards the supported filters. Without a time range it asks for the
// last 24 hours, newest first, capped at 500 events.
func (c *USGSClient) Query(ctx context.Context, in url.Values) (json.RawMessage, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing usgs url: %w", err)
	}

	out := url.Values{}
	out.Set("format", "geojson")
	for _, key := range USGSPassthrough {
		if v := in.Get(key); v != "" {
			out.Set(key, v)
		}
	}
	if out.Get("starttime") == "" && out.Get("endtime") == "" {
		end := c.clock.Now().UTC()
		out.Set("starttime", end.Add(-defaultWindow).Format(time.RFC3339))
		out.Set("endtime", end.Format(time.RFC3339))
	}
	if out.Get("orderby") == "" {
		out.Set("orderby", "time")
	}
	if out.Get("limit") == "" {
		out.Set("limit", defaultLimit)
	}
	u.RawQuery = out.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &UpstreamError{Source: "usgs", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var data usgsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}
	if len(data.Features) == 0 || string(data.Features) == "null" {
		return json.RawMessage("[]"), nil
	}
	return data.Features, nil
}
