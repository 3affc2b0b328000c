// Package backend is the HTTP client for the offer processing backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sacrosaunt/churnchurnchurn/internal/metrics"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/tracing"
)

// RequestIDHeader carries a per-request id to the backend logs.
const RequestIDHeader = "X-Request-ID"

// Client talks to the backend JSON API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger used for request tracing at debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}

	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ListOffers returns the full collection in backend order.
func (c *Client) ListOffers(ctx context.Context) ([]models.Offer, error) {
	var offers []models.Offer
	if err := c.call(ctx, "list_offers", http.MethodGet, "/api/offers", nil, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

// GetOffer returns a single offer, or ErrNotFound.
func (c *Client) GetOffer(ctx context.Context, id int) (models.Offer, error) {
	var offer models.Offer
	if err := c.call(ctx, "get_offer", http.MethodGet, offerPath(id), nil, &offer); err != nil {
		return models.Offer{}, err
	}
	return offer, nil
}

// CreateOffer submits a URL or pasted content. A conflict with an existing
// offer is returned as *DuplicateOfferError.
func (c *Client) CreateOffer(ctx context.Context, req models.CreateOfferRequest) (models.Offer, error) {
	req.RefreshOfferID = 0

	var offer models.Offer
	if err := c.call(ctx, "create_offer", http.MethodPost, "/api/offers", req, &offer); err != nil {
		return models.Offer{}, err
	}
	return offer, nil
}

// Reprocess asks the backend to run the whole pipeline again for offer.
// Offers created from pasted content resend that content, the rest resend
// their URL.
func (c *Client) Reprocess(ctx context.Context, offer models.Offer) (models.Offer, error) {
	req := models.CreateOfferRequest{RefreshOfferID: offer.ID}
	if offer.OriginalContent != "" {
		req.Content = offer.OriginalContent
	} else {
		req.URL = offer.URL
	}

	var out models.Offer
	if err := c.call(ctx, "reprocess_offer", http.MethodPost, "/api/offers", req, &out); err != nil {
		return models.Offer{}, err
	}
	return out, nil
}

// RefreshField starts re-extraction of a single field. The backend answers
// 202 and reports progress through the offer's refresh_status.
func (c *Client) RefreshField(ctx context.Context, id int, field string) error {
	body := models.RefreshFieldRequest{Field: field}
	var ack models.RefreshFieldResponse
	return c.call(ctx, "refresh_field", http.MethodPost, offerPath(id)+"/refresh", body, &ack)
}

// UpdateField writes one user-controlled flag or the url and returns the
// updated offer.
func (c *Client) UpdateField(ctx context.Context, id int, field string, value any) (models.Offer, error) {
	body := models.UpdateFieldRequest{Field: field, Value: value}
	var offer models.Offer
	if err := c.call(ctx, "update_field", http.MethodPut, offerPath(id), body, &offer); err != nil {
		return models.Offer{}, err
	}
	return offer, nil
}

// SetURL changes the offer's source URL. The backend rejects malformed URLs
// with 422.
func (c *Client) SetURL(ctx context.Context, id int, rawURL string) (models.Offer, error) {
	return c.UpdateField(ctx, id, "url", rawURL)
}

// DeleteOffer removes an offer.
func (c *Client) DeleteOffer(ctx context.Context, id int) error {
	var ack models.MessageResponse
	return c.call(ctx, "delete_offer", http.MethodDelete, offerPath(id), nil, &ack)
}

// GeneratePlan asks the backend planner for a schedule over the unopened
// offers.
func (c *Client) GeneratePlan(ctx context.Context, req models.PlanRequest) (models.Plan, error) {
	var plan models.Plan
	if err := c.call(ctx, "generate_plan", http.MethodPost, "/api/planning/generate", req, &plan); err != nil {
		return models.Plan{}, err
	}
	return plan, nil
}

// StorageStats returns counts for the backend's persisted store.
func (c *Client) StorageStats(ctx context.Context) (models.StorageStats, error) {
	var stats models.StorageStats
	if err := c.call(ctx, "storage_stats", http.MethodGet, "/api/storage/stats", nil, &stats); err != nil {
		return models.StorageStats{}, err
	}
	return stats, nil
}

// Backup asks the backend to snapshot its offer file.
func (c *Client) Backup(ctx context.Context) (models.BackupResponse, error) {
	var resp models.BackupResponse
	if err := c.call(ctx, "backup", http.MethodPost, "/api/storage/backup", struct{}{}, &resp); err != nil {
		return models.BackupResponse{}, err
	}
	return resp, nil
}

func offerPath(id int) string {
	return "/api/offers/" + strconv.Itoa(id)
}

func (c *Client) call(ctx context.Context, op, method, endpoint string, body, out any) error {
	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	ctx, span := tracing.StartBackendCall(ctx, op, method, endpoint, req.Header)
	defer span.End()
	req = req.WithContext(ctx)

	done := metrics.BackendRequestStarted(op)
	status, err := c.do(req, out)
	done(status)

	if status > 0 {
		tracing.SetStatusCode(span, status)
	}
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			tracing.Fail(span, err)
		}
		var ne *NetworkError
		if errors.As(err, &ne) {
			ne.Op = op
		}
	}

	c.logger.Debug().
		Str("op", op).
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", status).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Err(err).
		Msg("backend request")

	return err
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	resolved := *c.baseURL
	basePath := strings.TrimSuffix(c.baseURL.Path, "/")
	resolved.Path = path.Clean(basePath + endpoint)

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		buf = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, resolved.String(), buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	return req, nil
}

// do sends req and decodes a success body into out. It returns the HTTP
// status, or 0 when no response arrived.
func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &NetworkError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode >= 300 {
		return resp.StatusCode, mapError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func mapError(status int, data []byte) error {
	if status == http.StatusConflict {
		var dup models.DuplicateOfferResponse
		if err := json.Unmarshal(data, &dup); err == nil && dup.DuplicateOfferID != 0 {
			return &DuplicateOfferError{
				Message:    dup.Error,
				ExistingID: dup.DuplicateOfferID,
				Existing:   dup.DuplicateOffer,
			}
		}
	}

	var body models.ErrorResponse
	_ = json.Unmarshal(data, &body)
	return &APIError{StatusCode: status, Message: body.Error}
}
