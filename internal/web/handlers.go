// Package web is the storefront shell: a small HTTP surface that exposes the
// cart and checkout operations and hosts the provider's return and cancel
// redirect targets.
package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amorokdeh/GemsFlare/internal/api"
	"github.com/amorokdeh/GemsFlare/internal/auth"
	"github.com/amorokdeh/GemsFlare/internal/cart"
	"github.com/amorokdeh/GemsFlare/internal/checkout"
	"github.com/amorokdeh/GemsFlare/internal/domain"
	"github.com/amorokdeh/GemsFlare/internal/payment"
)

type Handler struct {
	cart       *cart.Service
	reconciler *checkout.Reconciler
	flow       *payment.Flow
	client     *api.Client
}

func NewHandler(cartSvc *cart.Service, reconciler *checkout.Reconciler, flow *payment.Flow, client *api.Client) *Handler {
	return &Handler{
		cart:       cartSvc,
		reconciler: reconciler,
		flow:       flow,
		client:     client,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type AddItemRequestDTO struct {
	Item           domain.Item       `json:"item"`
	Quantity       int               `json:"quantity"`
	SelectedColors map[string]string `json:"selectedColors,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartViewDTO struct {
	Lines  []domain.CartLine  `json:"lines"`
	Totals domain.OrderTotals `json:"totals"`
}

// GET /cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, CartViewDTO{
		Lines:  h.cart.Lines(),
		Totals: h.cart.Totals(),
	})
}

// POST /cart/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Item.ID == "" {
		respondError(w, http.StatusBadRequest, "invalid_item", "item id is required")
		return
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	h.cart.AddToCart(r.Context(), req.Item, quantity, req.SelectedColors)
	h.reconcile(r, checkout.SignalCartSizeChanged)

	respondJSON(w, http.StatusCreated, CartViewDTO{
		Lines:  h.cart.Lines(),
		Totals: h.cart.Totals(),
	})
}

// PUT /cart/items/{itemID}
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 1 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
		return
	}

	h.cart.UpdateQuantity(r.Context(), itemID, req.Quantity)

	respondJSON(w, http.StatusOK, CartViewDTO{
		Lines:  h.cart.Lines(),
		Totals: h.cart.Totals(),
	})
}

// DELETE /cart/items/{itemID}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	h.cart.RemoveFromCart(r.Context(), itemID)
	h.reconcile(r, checkout.SignalCartSizeChanged)

	respondJSON(w, http.StatusOK, CartViewDTO{
		Lines:  h.cart.Lines(),
		Totals: h.cart.Totals(),
	})
}

type CheckoutViewDTO struct {
	State    checkout.State   `json:"state"`
	Checkout *domain.Checkout `json:"checkout,omitempty"`
}

// GET /checkout renders the entry view: reconcile and show the order
// summary. A remembered checkout is reused; an empty cart shows NO_CHECKOUT
// without touching the backend.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	// Re-entering the checkout after a finished attempt starts a fresh
	// flow; the previous step and capture latch belong to that attempt.
	if h.flow.Step().IsTerminal() {
		h.flow.Reset()
	}

	record, err := h.reconciler.Ensure(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			// fall through to the state response
		case errors.Is(err, auth.ErrAuthRequired):
			respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		default:
			respondError(w, http.StatusBadGateway, "checkout_failed", err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, CheckoutViewDTO{
		State:    h.reconciler.State(),
		Checkout: record,
	})
}

// SubmitCheckout creates the remote order and redirects the browser
// to the provider's approval URL.
func (h *Handler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shipping, err := h.client.GetShippingAddress(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrAuthRequired) {
			respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		// No address on file blocks submission inside Begin; other
		// failures degrade the same way.
		log.Printf("web: no shipping address: %v", err)
		shipping = nil
	}

	approvalURL, err := h.flow.Begin(ctx, shipping)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAuthRequired):
			respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, payment.ErrNoShippingAddress):
			respondError(w, http.StatusBadRequest, "precondition_failed", err.Error())
		case errors.Is(err, payment.ErrFlowBusy):
			respondError(w, http.StatusConflict, "flow_busy", err.Error())
		default:
			respondError(w, http.StatusBadGateway, "checkout_failed", err.Error())
		}
		return
	}

	http.Redirect(w, r, approvalURL, http.StatusSeeOther)
}

// GET /return is where the provider redirects with token and PayerID.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	result, err := h.flow.HandleReturn(r.Context(), r.URL.Query())
	if err != nil {
		if errors.Is(err, auth.ErrAuthRequired) {
			respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "capture_failed", err.Error())
		return
	}
	if result.Next == payment.PathCheckout {
		// The attempt is over; rearm so the user can resubmit.
		h.flow.Reset()
	}
	// Redirecting without the query parameters strips them from the
	// address bar.
	http.Redirect(w, r, result.Next, http.StatusSeeOther)
}

// GET /cancel is where the provider redirects on abandonment.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	query.Set("cancelled", "true")
	result, _ := h.flow.HandleReturn(r.Context(), query)
	http.Redirect(w, r, result.Next, http.StatusSeeOther)
}

type ConfirmationDTO struct {
	Step    domain.PaymentStep `json:"step"`
	OrderID string             `json:"orderId,omitempty"`
}

// GET /order-confirmation
func (h *Handler) Confirmation(w http.ResponseWriter, r *http.Request) {
	result, err := h.flow.HandleReturn(r.Context(), r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadGateway, "capture_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ConfirmationDTO{
		Step:    h.flow.Step(),
		OrderID: result.OrderID,
	})
}

// reconcile keeps a tracked checkout in sync with cart line additions and
// removals made before payment. Without a tracked checkout there is nothing
// to sync; the entry view creates one when it loads.
func (h *Handler) reconcile(r *http.Request, sig checkout.Signal) {
	if h.reconciler.State() != checkout.StateHasCheckout {
		return
	}
	if _, err := h.reconciler.HandleSignal(r.Context(), sig); err != nil {
		log.Printf("web: reconcile on %s failed: %v", sig, err)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("web: encode response failed: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: details,
	})
}
