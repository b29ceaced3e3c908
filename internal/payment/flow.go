// Package payment drives the PayPal redirect flow: create a remote order,
// hand the browser to the provider, and on return capture exactly once.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/amorokdeh/GemsFlare/internal/checkout"
	"github.com/amorokdeh/GemsFlare/internal/domain"
	"github.com/amorokdeh/GemsFlare/internal/notify"
	"github.com/amorokdeh/GemsFlare/internal/storage"
)

var (
	ErrNoShippingAddress = errors.New("shipping address required")
	ErrFlowBusy          = errors.New("payment flow already in progress")
)

// Paths the flow routes the shell to. The provider gets the absolute
// return/cancel URLs built from the configured origin.
const (
	PathCheckout     = "/checkout"
	PathConfirmation = "/order-confirmation"
	PathReturn       = "/return"
	PathCancel       = "/cancel"
)

// API is the slice of the backend the flow needs.
type API interface {
	CreatePayPalOrder(ctx context.Context, checkoutNumber, returnURL, cancelURL string) (*domain.PayPalOrder, error)
	CapturePayPalOrder(ctx context.Context, orderID, checkoutNumber string) (*domain.CaptureResult, error)
}

// Cart is the slice of the cart store the flow needs. ClearCart runs
// strictly after a completed capture, never speculatively.
type Cart interface {
	Size() int
	ClearCart(ctx context.Context)
}

// Checkouts ensures and forgets the active server-side checkout record.
type Checkouts interface {
	Ensure(ctx context.Context) (*domain.Checkout, error)
	Reset(ctx context.Context)
}

// Session gates the return handling; captures never run unauthenticated.
type Session interface {
	Authenticated(ctx context.Context) bool
}

// ReturnResult tells the shell where to navigate after a provider return.
// Next never carries the callback parameters, which strips them from the
// address bar on navigation.
type ReturnResult struct {
	Confirmed bool
	OrderID   string
	Next      string
}

// Flow is the redirect flow controller. One instance covers one navigation
// lifetime of the confirmation view; the captured latch guarantees at most
// one capture attempt per instance and only Reset rearms it.
type Flow struct {
	api       API
	cart      Cart
	checkouts Checkouts
	session   Session
	store     storage.Store
	notifier  notify.Notifier
	origin    string // public origin the provider redirects back to

	mu       sync.Mutex
	step     domain.PaymentStep
	captured bool
	orderID  string
}

func NewFlow(api API, cart Cart, checkouts Checkouts, session Session, store storage.Store, notifier notify.Notifier, origin string) *Flow {
	return &Flow{
		api:       api,
		cart:      cart,
		checkouts: checkouts,
		session:   session,
		store:     store,
		notifier:  notifier,
		origin:    origin,
		step:      domain.PaymentStepInitial,
	}
}

// Begin validates the preconditions, ensures a checkout exists and creates
// the remote order. It returns the provider's approval URL; the caller
// performs the actual navigation.
func (f *Flow) Begin(ctx context.Context, shipping *domain.DeliveryAddress) (string, error) {
	if f.cart.Size() == 0 {
		f.notifier.Notify(notify.Notification{
			Level:       notify.LevelWarning,
			Title:       "Cart is empty",
			Description: "Please add items to your cart before checking out.",
		})
		return "", checkout.ErrEmptyCart
	}
	if shipping == nil {
		f.notifier.Notify(notify.Notification{
			Level:       notify.LevelWarning,
			Title:       "Shipping address required",
			Description: "Please add a shipping address before placing your order.",
		})
		return "", ErrNoShippingAddress
	}

	if err := f.transition(domain.PaymentStepProcessing); err != nil {
		return "", err
	}

	active, err := f.checkouts.Ensure(ctx)
	if err != nil {
		f.failBegin(err)
		return "", err
	}

	order, err := f.api.CreatePayPalOrder(ctx,
		active.Number,
		f.origin+PathReturn,
		f.origin+PathCancel,
	)
	if err != nil {
		f.failBegin(err)
		return "", err
	}

	f.rememberPendingOrder(ctx, order.OrderID)

	f.mu.Lock()
	f.orderID = order.OrderID
	f.step = domain.PaymentStepRedirecting
	f.mu.Unlock()

	return order.ApprovalURL, nil
}

// HandleReturn consumes the provider's callback parameters. Capture runs at
// most once per flow instance, even when the return handling re-executes
// with identical parameters before the URL is rewritten.
func (f *Flow) HandleReturn(ctx context.Context, query url.Values) (*ReturnResult, error) {
	if query.Get("cancelled") == "true" {
		f.notifier.Notify(notify.Notification{
			Level:       notify.LevelWarning,
			Title:       "Payment cancelled",
			Description: "Your payment was cancelled. You can try again when you're ready.",
		})
		// No capture happened; the flow restarts from INITIAL so the
		// user can resubmit.
		f.Reset()
		return &ReturnResult{Next: PathCheckout}, nil
	}

	token := query.Get("token")
	payerID := query.Get("PayerID")
	if token == "" || payerID == "" {
		// Not a provider return; report the order already captured this
		// navigation, falling back to the pending order memo once.
		f.mu.Lock()
		confirmed := f.step == domain.PaymentStepConfirmed
		orderID := f.orderID
		f.mu.Unlock()
		if orderID == "" {
			orderID = f.takePendingOrder(ctx)
		}
		return &ReturnResult{Confirmed: confirmed, OrderID: orderID, Next: PathConfirmation}, nil
	}

	if !f.session.Authenticated(ctx) {
		return &ReturnResult{Next: PathCheckout}, nil
	}

	f.mu.Lock()
	if f.captured {
		next := PathConfirmation
		if f.step == domain.PaymentStepFailed {
			next = PathCheckout
		}
		result := &ReturnResult{Confirmed: f.step == domain.PaymentStepConfirmed, OrderID: f.orderID, Next: next}
		f.mu.Unlock()
		return result, nil
	}
	// The latch is set before the capture call begins so a re-entry during
	// the await cannot start a second capture.
	f.captured = true
	f.step = domain.PaymentStepCapturing
	f.mu.Unlock()

	number := f.storedCheckoutNumber(ctx)
	result, err := f.api.CapturePayPalOrder(ctx, token, number)
	if err != nil {
		log.Printf("payment: capture failed: %v", err)
		f.notifier.Notify(notify.Notification{
			Level:       notify.LevelError,
			Title:       "Payment verification failed",
			Description: "We couldn't verify your payment. Please contact customer support.",
		})
		f.finish(domain.PaymentStepFailed, "")
		return &ReturnResult{Next: PathCheckout}, nil
	}

	if result.Status != domain.CaptureCompleted {
		f.notifier.Notify(notify.Notification{
			Level:       notify.LevelWarning,
			Title:       "Payment not completed",
			Description: "Your payment was not completed. Please try again.",
		})
		f.finish(domain.PaymentStepFailed, "")
		return &ReturnResult{Next: PathCheckout}, nil
	}

	// Completed: only now is it safe to drop local purchase state.
	f.cart.ClearCart(ctx)
	f.checkouts.Reset(ctx)
	if err := f.store.Delete(ctx, storage.KeyPendingOrder); err != nil {
		log.Printf("payment: drop pending order failed: %v", err)
	}
	f.notifier.Notify(notify.Notification{
		Level:       notify.LevelInfo,
		Title:       "Payment successful",
		Description: "Thank you for your purchase!",
	})
	f.finish(domain.PaymentStepConfirmed, result.OrderID)
	return &ReturnResult{Confirmed: true, OrderID: result.OrderID, Next: PathConfirmation}, nil
}

// Step reports the current flow step.
func (f *Flow) Step() domain.PaymentStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Reset rearms the flow for a new attempt. The navigation-away analog: the
// capture latch only clears here.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.step = domain.PaymentStepInitial
	f.captured = false
	f.orderID = ""
}

func (f *Flow) transition(to domain.PaymentStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !domain.CanTransitionTo(f.step, to) {
		if f.step == domain.PaymentStepProcessing || f.step == domain.PaymentStepRedirecting {
			return ErrFlowBusy
		}
		return fmt.Errorf("illegal payment step transition %s -> %s", f.step, to)
	}
	f.step = to
	return nil
}

func (f *Flow) failBegin(err error) {
	log.Printf("payment: begin failed: %v", err)
	f.notifier.Notify(notify.Notification{
		Level:       notify.LevelError,
		Title:       "Checkout failed",
		Description: "There was a problem processing your order. Please try again.",
	})
	f.mu.Lock()
	f.step = domain.PaymentStepInitial
	f.mu.Unlock()
}

func (f *Flow) finish(step domain.PaymentStep, orderID string) {
	f.mu.Lock()
	f.step = step
	f.orderID = orderID
	f.mu.Unlock()
}

// storedCheckoutNumber reads the number persisted at redirect time. It is
// never re-derived from the cart.
func (f *Flow) storedCheckoutNumber(ctx context.Context) string {
	data, err := f.store.Get(ctx, storage.KeyCheckoutNumber)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("payment: read checkout number failed: %v", err)
		}
		return ""
	}
	return string(data)
}

func (f *Flow) rememberPendingOrder(ctx context.Context, orderID string) {
	data, err := json.Marshal(domain.PendingOrder{OrderID: orderID})
	if err != nil {
		return
	}
	if err := f.store.Set(ctx, storage.KeyPendingOrder, data); err != nil {
		log.Printf("payment: remember pending order failed: %v", err)
	}
}

// takePendingOrder reads and removes the pending order memo so it cannot be
// shown twice.
func (f *Flow) takePendingOrder(ctx context.Context) string {
	data, err := f.store.Get(ctx, storage.KeyPendingOrder)
	if err != nil {
		return ""
	}
	var pending domain.PendingOrder
	if err := json.Unmarshal(data, &pending); err != nil {
		if delErr := f.store.Delete(ctx, storage.KeyPendingOrder); delErr != nil {
			log.Printf("payment: drop corrupt pending order failed: %v", delErr)
		}
		return ""
	}
	if err := f.store.Delete(ctx, storage.KeyPendingOrder); err != nil {
		log.Printf("payment: drop pending order failed: %v", err)
	}
	return pending.OrderID
}
