package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amorokdeh/GemsFlare/internal/domain"
)

func (c *Client) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := c.do(ctx, http.MethodGet, "user/getUserById/"+userID, nil, nil, &profile, true); err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return &profile, nil
}

// GetShippingAddress returns the delivery address on file for the current
// user. Absence is a 404; callers treat it as "no address yet", not as an
// error worth surfacing.
func (c *Client) GetShippingAddress(ctx context.Context) (*domain.DeliveryAddress, error) {
	var address domain.DeliveryAddress
	if err := c.do(ctx, http.MethodGet, "deliveryAddress/getMyDeliveryAddress", nil, nil, &address, true); err != nil {
		return nil, fmt.Errorf("get shipping address: %w", err)
	}
	return &address, nil
}

func (c *Client) GetBillingAddress(ctx context.Context) (*domain.BillAddress, error) {
	var address domain.BillAddress
	if err := c.do(ctx, http.MethodGet, "billAddress/getMyBillAddress", nil, nil, &address, true); err != nil {
		return nil, fmt.Errorf("get billing address: %w", err)
	}
	return &address, nil
}
