// services/verifier_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// VerificationClient queries the third-party transaction-status API during
// purchase confirmation. Failure classification:
//   - 2xx: success, short-circuit
//   - 4xx: terminal, no further attempts, upstream status surfaced
//   - anything else (5xx, network, timeout): retryable, wait attempt*RetryDelay
//
// After MaxAttempts the caller gets a 502-class error distinct from a 4xx
// terminal one.
type VerificationClient struct {
	BaseURL string
	AppID   string
	APIKey  string
	Client  *http.Client

	MaxAttempts    int
	RetryDelay     time.Duration // scaled by the attempt number
	AttemptTimeout time.Duration
}

func NewVerificationClient(baseURL, appID, apiKey string) *VerificationClient {
	return &VerificationClient{
		BaseURL: baseURL,
		AppID:   appID,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout: 15 * time.Second,
		},
		MaxAttempts:    3,
		RetryDelay:     500 * time.Millisecond,
		AttemptTimeout: 10 * time.Second,
	}
}

// VerificationResult is the upstream transaction state.
type VerificationResult struct {
	Status    string
	Reference string
	TxHash    string
}

// Confirmed reports whether the upstream considers the transaction settled.
func (r *VerificationResult) Confirmed() bool {
	switch r.Status {
	case "confirmed", "success", "mined":
		return true
	}
	return false
}

// VerificationError carries the classification the confirmation orchestrator
// maps onto HTTP responses.
type VerificationError struct {
	StatusCode int // upstream 4xx, or 502 after exhausted retries
	Terminal   bool
	Attempts   int
	Message    string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed after %d attempt(s), status %d: %s",
		e.Attempts, e.StatusCode, e.Message)
}

// GetTransaction fetches the transaction status with bounded sequential
// retries. Each attempt is bounded by AttemptTimeout via a cancellable
// request.
func (c *VerificationClient) GetTransaction(ctx context.Context, transactionID string) (*VerificationResult, error) {
	u := fmt.Sprintf("%s/transaction/%s?app_id=%s&type=miniapp",
		c.BaseURL, url.PathEscape(transactionID), url.QueryEscape(c.AppID))

	var lastErr error
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		result, verr, err := c.attempt(ctx, u)
		if err == nil && verr == nil {
			return result, nil
		}
		if verr != nil {
			verr.Attempts = attempt
			return nil, verr
		}
		lastErr = err

		if attempt < c.MaxAttempts {
			backoff := time.Duration(attempt) * c.RetryDelay
			select {
			case <-ctx.Done():
				return nil, &VerificationError{
					StatusCode: http.StatusBadGateway,
					Attempts:   attempt,
					Message:    ctx.Err().Error(),
				}
			case <-time.After(backoff):
			}
		}
	}

	return nil, &VerificationError{
		StatusCode: http.StatusBadGateway,
		Attempts:   c.MaxAttempts,
		Message:    fmt.Sprintf("retries exhausted: %v", lastErr),
	}
}

// attempt performs one request. A non-nil *VerificationError means terminal
// (4xx); a plain error means retryable.
func (c *VerificationClient) attempt(ctx context.Context, u string) (*VerificationResult, *VerificationError, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, "GET", u, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// upstream emits either transaction_status or status depending on API
		// version; accept both
		var body struct {
			TransactionStatus string `json:"transaction_status"`
			Status            string `json:"status"`
			Reference         string `json:"reference"`
			TransactionHash   string `json:"transaction_hash"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, nil, fmt.Errorf("failed to decode verifier response: %w", err)
		}
		status := body.TransactionStatus
		if status == "" {
			status = body.Status
		}
		return &VerificationResult{
			Status:    status,
			Reference: body.Reference,
			TxHash:    body.TransactionHash,
		}, nil, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, &VerificationError{
			StatusCode: resp.StatusCode,
			Terminal:   true,
			Message:    string(raw),
		}, nil
	}
	return nil, nil, fmt.Errorf("verifier returned status %d: %s", resp.StatusCode, string(raw))
}
