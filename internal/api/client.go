// Package api is the client for the pricing and validator backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/model"
)

const maxErrorBody = 64 << 10

// Client talks JSON over HTTP to the backend. GETs retry transient
// failures; POSTs are sent once.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	retryInitial    time.Duration
	retryMaxElapsed time.Duration
}

// New creates a client for baseURL; a trailing slash is ignored.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            &http.Client{Timeout: timeout},
		logger:          logger,
		retryInitial:    500 * time.Millisecond,
		retryMaxElapsed: 30 * time.Second,
	}
}

// SetRetry bounds GET retries. A zero maxElapsed disables retrying.
func (c *Client) SetRetry(initial, maxElapsed time.Duration) {
	if initial > 0 {
		c.retryInitial = initial
	}
	c.retryMaxElapsed = maxElapsed
}

func (c *Client) ListPools(ctx context.Context) ([]model.PoolSummary, error) {
	var out []model.PoolSummary
	if err := c.get(ctx, "/v1/pools", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ReserveOverview(ctx context.Context) (model.ReserveOverview, error) {
	var out model.ReserveOverview
	err := c.get(ctx, "/v1/reserve/overview", nil, &out)
	return out, err
}

// CreatePolicyDraft asks the pricing backend for a signed quote.
func (c *Client) CreatePolicyDraft(ctx context.Context, req model.CoverageRequest) (model.PolicyDraft, error) {
	var out model.PolicyDraft
	err := c.post(ctx, "/v1/policies", req, &out)
	return out, err
}

// FinalizePolicy reports a confirmed mint so the draft becomes a policy record.
func (c *Client) FinalizePolicy(ctx context.Context, draftID string, req model.FinalizeRequest) (model.PolicyRecord, error) {
	var out model.PolicyRecord
	if strings.TrimSpace(draftID) == "" {
		return out, apperr.Validation("draft id is required")
	}
	err := c.post(ctx, "/v1/policies/"+url.PathEscape(draftID)+"/finalize", req, &out)
	return out, err
}

// ListPolicies returns the wallet's policies; an empty wallet yields none.
func (c *Client) ListPolicies(ctx context.Context, wallet string) ([]model.PolicyRecord, error) {
	if wallet == "" {
		return []model.PolicyRecord{}, nil
	}
	var out []model.PolicyRecord
	if err := c.get(ctx, "/v1/policies", url.Values{"wallet": {wallet}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PreviewClaim(ctx context.Context, policyID string) (model.ClaimPreview, error) {
	var out model.ClaimPreview
	err := c.get(ctx, "/v1/claim/preview", url.Values{"policyId": {policyID}}, &out)
	return out, err
}

// SignClaim asks the validator for a claim authorization.
func (c *Client) SignClaim(ctx context.Context, policyID string) (model.ClaimAuthorization, error) {
	var out model.ClaimAuthorization
	err := c.post(ctx, "/v1/claim/sign", model.SignClaimRequest{PolicyID: policyID}, &out)
	return out, err
}

// ListClaims returns the wallet's claims; an empty wallet yields none.
func (c *Client) ListClaims(ctx context.Context, wallet string) ([]model.ClaimRecord, error) {
	if wallet == "" {
		return []model.ClaimRecord{}, nil
	}
	var out []model.ClaimRecord
	if err := c.get(ctx, "/v1/claims", url.Values{"wallet": {wallet}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ClaimQueue(ctx context.Context) ([]model.ClaimQueueItem, error) {
	var out []model.ClaimQueueItem
	if err := c.get(ctx, "/v1/claims/queue", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		err = c.do(req, out)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		if err != nil {
			c.logger.Warn("api request failed, retrying",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return err
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if c.retryMaxElapsed > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = c.retryInitial
		eb.MaxInterval = 10 * time.Second
		eb.MaxElapsedTime = c.retryMaxElapsed
		eb.Multiplier = 2.0
		eb.RandomizationFactor = 0.5
		b = eb
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return asNetwork(err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return asNetwork(c.do(req, out))
}

// statusError is a non-2xx response.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return e.message
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func asNetwork(err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != "" {
		return err
	}
	var se *statusError
	if errors.As(err, &se) {
		return apperr.Network(se.message, nil)
	}
	return apperr.Network("backend unreachable", err)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &statusError{status: resp.StatusCode, message: errorMessage(resp.StatusCode, body)}
	}
	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Network("invalid backend response", err)
	}
	return nil
}

// errorMessage joins the backend's error, message and string details.
func errorMessage(status int, body []byte) string {
	var apiErr model.APIError
	if len(body) > 0 && json.Unmarshal(body, &apiErr) == nil {
		parts := make([]string, 0, 3)
		for _, p := range []string{apiErr.Error, apiErr.Message, stringDetails(apiErr.Details)} {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " - ")
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unexpected API error"
}

func stringDetails(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
