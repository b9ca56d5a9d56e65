// services/iprisk_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"miniapp-game-backend/utils"
)

// IPRisk is the reputation classification for a client IP.
type IPRisk struct {
	Level string `json:"risk_level"` // low | medium | high
	VPN   bool   `json:"is_vpn"`
	Proxy bool   `json:"is_proxy"`
	Tor   bool   `json:"is_tor"`
}

// IPRiskClient looks up the reputation of an IP. Callers treat lookup errors
// as unknown/low risk (fail-open) — a reputation-provider outage must never
// block all play.
type IPRiskClient interface {
	Lookup(ctx context.Context, ip string) (IPRisk, error)
}

// HTTPIPRiskClient queries an external reputation API.
type HTTPIPRiskClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPIPRiskClient(baseURL, apiKey string) *HTTPIPRiskClient {
	// per-lookup deadlines come from the caller's context; the shared client
	// only bounds the worst case
	return &HTTPIPRiskClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  utils.HTTPClient,
	}
}

func (c *HTTPIPRiskClient) Lookup(ctx context.Context, ip string) (IPRisk, error) {
	u := fmt.Sprintf("%s/ip/%s", c.BaseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return IPRisk{}, err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return IPRisk{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return IPRisk{}, fmt.Errorf("ip risk service returned %d: %s", resp.StatusCode, string(body))
	}

	var risk IPRisk
	if err := json.NewDecoder(resp.Body).Decode(&risk); err != nil {
		return IPRisk{}, err
	}
	return risk, nil
}

// NoopIPRiskClient is used when no reputation provider is configured.
type NoopIPRiskClient struct{}

func (NoopIPRiskClient) Lookup(ctx context.Context, ip string) (IPRisk, error) {
	return IPRisk{Level: "low"}, nil
}
