package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"posbackend/internal/models"
)

// ErrInvalidCredential is returned when the aggregator answers 401.
var ErrInvalidCredential = errors.New("invalid API credential")

// ConnectionError reports a non-2xx, non-401 answer from the aggregator.
type ConnectionError struct {
	StatusCode int
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: HTTP %d", e.StatusCode)
}

// Filters narrow an order listing. Zero values are omitted from the query.
type Filters struct {
	Page      int
	PerPage   int
	StartDate string
	EndDate   string
}

// FetchResult is the outcome of one listing call. Error is empty on success.
type FetchResult struct {
	Orders  []models.Order
	Skipped int
	Error   string
}

func (r FetchResult) OK() bool { return r.Error == "" }

// Client talks to the delivery-aggregation API.
type Client struct {
	baseURL    string
	http       *http.Client
	normalizer *Normalizer
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, normalizer *Normalizer, logger *zap.Logger) *Client {
	if normalizer == nil {
		normalizer = NewNormalizer(false)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		normalizer: normalizer,
		logger:     logger,
	}
}

// Fetch lists orders and normalizes them. It never returns a Go error:
// HTTP, transport and decoding failures are described in FetchResult.Error.
func (c *Client) Fetch(ctx context.Context, token string, f Filters) FetchResult {
	body, err := c.get(ctx, token, f)
	if err != nil {
		c.logger.Warn("fetch failed", zap.Error(err))
		return FetchResult{Orders: []models.Order{}, Error: describe(err)}
	}

	payloads, err := extractPayloads(body)
	if err != nil {
		c.logger.Warn("unexpected response shape", zap.Error(err))
		return FetchResult{Orders: []models.Order{}, Error: err.Error()}
	}

	result := FetchResult{Orders: make([]models.Order, 0, len(payloads))}
	for _, raw := range payloads {
		order, err := c.normalizer.Normalize(raw)
		if err != nil {
			result.Skipped++
			c.logger.Warn("skipping order payload", zap.Error(err), zap.Any("id", raw["id"]))
			continue
		}
		result.Orders = append(result.Orders, order)
	}
	return result
}

// TestConnection checks token with a one-item listing.
func (c *Client) TestConnection(ctx context.Context, token string) error {
	_, err := c.get(ctx, token, Filters{PerPage: 1})
	return err
}

func (c *Client) get(ctx context.Context, token string, f Filters) ([]byte, error) {
	query := url.Values{}
	if f.Page > 0 {
		query.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		query.Set("per_page", strconv.Itoa(f.PerPage))
	}
	if f.StartDate != "" {
		query.Set("start_date", f.StartDate)
	}
	if f.EndDate != "" {
		query.Set("end_date", f.EndDate)
	}
	endpoint := c.baseURL + "/orders"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "request orders")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrInvalidCredential
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &ConnectionError{StatusCode: resp.StatusCode}
	}
	return body, nil
}

func describe(err error) string {
	var connErr *ConnectionError
	switch {
	case errors.Is(err, ErrInvalidCredential):
		return "invalid API credential (HTTP 401)"
	case errors.As(err, &connErr):
		return connErr.Error()
	default:
		return err.Error()
	}
}

// extractPayloads accepts a bare array or an object carrying the array under
// "data" or "orders" (one level of nesting is tolerated).
func extractPayloads(body []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, pkgerrors.Wrap(err, "decode response")
	}

	list, ok := findOrderList(root, 0)
	if !ok {
		return nil, errors.New("response has no order list")
	}

	out := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if obj, ok := entry.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

func findOrderList(v any, depth int) ([]any, bool) {
	switch typed := v.(type) {
	case []any:
		return typed, true
	case map[string]any:
		if depth > 1 {
			return nil, false
		}
		for _, key := range []string{"data", "orders"} {
			if inner, ok := typed[key]; ok {
				if list, ok := findOrderList(inner, depth+1); ok {
					return list, true
				}
			}
		}
	}
	return nil, false
}
