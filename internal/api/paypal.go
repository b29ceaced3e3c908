package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/amorokdeh/GemsFlare/internal/domain"
)

// CreatePayPalOrder asks the backend to open a remote payment order for the
// given checkout. The provider redirects the browser back to returnURL on
// approval and to cancelURL on abandonment; both must be absolute.
func (c *Client) CreatePayPalOrder(ctx context.Context, checkoutNumber, returnURL, cancelURL string) (*domain.PayPalOrder, error) {
	query := url.Values{
		"checkoutNumber": {checkoutNumber},
		"returnUrl":      {returnURL},
		"cancelUrl":      {cancelURL},
	}
	var order domain.PayPalOrder
	if err := c.do(ctx, http.MethodPost, "api/paypal/create-order", query, nil, &order, true); err != nil {
		return nil, fmt.Errorf("create paypal order: %w", err)
	}
	return &order, nil
}

// CapturePayPalOrder confirms a previously created remote order. The caller
// decides what the returned status means; only the literal
// domain.CaptureCompleted finalizes a purchase.
func (c *Client) CapturePayPalOrder(ctx context.Context, orderID, checkoutNumber string) (*domain.CaptureResult, error) {
	query := url.Values{
		"orderId":        {orderID},
		"checkoutNumber": {checkoutNumber},
	}
	var result domain.CaptureResult
	if err := c.do(ctx, http.MethodPost, "api/paypal/capture-order", query, nil, &result, true); err != nil {
		return nil, fmt.Errorf("capture paypal order: %w", err)
	}
	return &result, nil
}
