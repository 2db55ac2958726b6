package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AvailabilityLine is one requested (product, unit, quantity) triple.
type AvailabilityLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	UnitID    uuid.UUID       `json:"unit_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Shortage reports a line the inventory service cannot cover. Index points
// back into the request lines.
type Shortage struct {
	Index     int             `json:"index"`
	ProductID uuid.UUID       `json:"product_id"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
}

type availabilityRequest struct {
	OwnerID uuid.UUID          `json:"owner_id"`
	Lines   []AvailabilityLine `json:"lines"`
}

type availabilityResponse struct {
	Shortages []Shortage `json:"shortages"`
}

// errUpstreamRejected marks a 4xx answer: the service is alive, the request is bad.
var errUpstreamRejected = errors.New("inventory: request rejected")

// InventoryClient reads stock availability from the external inventory
// service. Inventory itself is never computed here.
type InventoryClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *CircuitBreaker
}

func NewInventoryClient(baseURL string, timeout time.Duration) *InventoryClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cfg := DefaultCBConfig("inventory")
	cfg.IsFailure = func(err error) bool { return err != nil && !errors.Is(err, errUpstreamRejected) }
	return &InventoryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    NewCircuitBreaker(cfg),
	}
}

// Breaker exposes the CB for health reporting.
func (c *InventoryClient) Breaker() *CircuitBreaker { return c.breaker }

// CheckAvailability posts the lines to /availability. A nil slice means
// everything is in stock.
func (c *InventoryClient) CheckAvailability(ctx context.Context, ownerID uuid.UUID, lines []AvailabilityLine) ([]Shortage, error) {
	var out availabilityResponse
	err := c.breaker.Execute(func() error {
		return c.post(ctx, availabilityRequest{OwnerID: ownerID, Lines: lines}, &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Shortages, nil
}

func (c *InventoryClient) post(ctx context.Context, payload availabilityRequest, out *availabilityResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("inventory: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/availability", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("inventory: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inventory: service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("inventory: service returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", errUpstreamRejected, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("inventory: decode response: %w", err)
	}
	return nil
}
