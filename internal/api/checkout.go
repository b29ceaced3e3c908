package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amorokdeh/GemsFlare/internal/domain"
)

// AddCheckout creates a server-side checkout record from the given payload
// and returns it with the backend-assigned number.
func (c *Client) AddCheckout(ctx context.Context, payload *domain.Checkout) (*domain.Checkout, error) {
	var created domain.Checkout
	if err := c.do(ctx, http.MethodPost, "checkout/addCheckout", nil, payload, &created, true); err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}
	return &created, nil
}

// GetCheckout fetches an existing checkout by its number. A lookup miss
// surfaces as an *APIError with status 404; see IsNotFound.
func (c *Client) GetCheckout(ctx context.Context, number string) (*domain.Checkout, error) {
	var checkout domain.Checkout
	if err := c.do(ctx, http.MethodGet, "checkout/getCheckout/"+number, nil, nil, &checkout, true); err != nil {
		return nil, fmt.Errorf("get checkout %s: %w", number, err)
	}
	return &checkout, nil
}
