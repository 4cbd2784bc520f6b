package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotConfigured means the feed has no API key.
var ErrNotConfigured = errors.New("GETAMBEE_API_KEY is not configured")

// UpstreamError is a non-2xx answer from a feed provider.
type UpstreamError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s request failed: status %d", e.Source, e.StatusCode)
}

// AmbeeClient proxies Ambee's latest-disasters-by-continent endpoint.
type AmbeeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewAmbeeClient(baseURL, apiKey string, timeout time.Duration) *AmbeeClient {
	return &AmbeeClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *AmbeeClient) IsConfigured() bool { return c.apiKey != "" }

// Latest forwards every query parameter unchanged and returns Ambee's JSON body.
func (c *AmbeeClient) Latest(ctx context.Context, in url.Values) (json.RawMessage, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing ambee url: %w", err)
	}
	q := u.Query()
	for k, vs := range in {
		if len(vs) > 0 {
			q.Set(k, vs[len(vs)-1])
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Source: "ambee", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}
	return raw, nil
}
