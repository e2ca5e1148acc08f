package publicdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Endpoint paths below the portal base URL
const (
	EmergencyBedsPath    = "/ErmctInfoInqireService/getEmrrmRltmUsefulSckbdInfoInqire"
	PharmacyLocationPath = "/ErmctInsttInfoInqireService/getParmacyLcinfoInqire"
)

// Result codes the portal reports in response headers
const (
	ResultCodeOK     = "00"
	ResultCodeNoData = "03"
)

const maxPayloadBytes = 8 << 20

// Client calls the public data portal and normalizes its envelopes into flat items.
type Client struct {
	baseURL    string
	format     string
	httpClient *http.Client
}

// NewClient creates a portal client. format is "xml" or "json".
func NewClient(baseURL, format string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, format, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP allows overriding the HTTP client (used for tests).
func NewClientWithHTTP(baseURL, format string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		format:     strings.ToLower(format),
		httpClient: httpClient,
	}
}

// Get calls path with the service key and params and returns the items of the response body.
// A "no data" result yields no items and no error. A provider-reported failure is a *ServiceError.
func (c *Client) Get(ctx context.Context, path, serviceKey string, params url.Values) ([]Item, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("serviceKey", serviceKey)
	if c.format == "json" {
		query.Set("_type", "json")
	}

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// the portal sometimes reports key errors with a 5xx and an error envelope
		var svcErr *ServiceError
		if _, decodeErr := Decode(body); errors.As(decodeErr, &svcErr) {
			return nil, svcErr
		}
		return nil, fmt.Errorf("portal returned status %d", resp.StatusCode)
	}

	return Decode(body)
}
