// Package checkout bridges the local cart to the server-tracked checkout
// resource so payment can reference a durable, auditable order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/amorokdeh/GemsFlare/internal/domain"
	"github.com/amorokdeh/GemsFlare/internal/notify"
	"github.com/amorokdeh/GemsFlare/internal/storage"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

// API is the slice of the backend the reconciler needs.
// Consumers define this interface, not the api package.
type API interface {
	AddCheckout(ctx context.Context, payload *domain.Checkout) (*domain.Checkout, error)
	GetCheckout(ctx context.Context, number string) (*domain.Checkout, error)
}

// Cart is the read side of the cart store.
type Cart interface {
	Lines() []domain.CartLine
	Totals() domain.OrderTotals
	Size() int
}

// Session identifies the visitor; reconciliation refuses to run without one.
type Session interface {
	UserID(ctx context.Context) (string, error)
}

type State string

const (
	StateNoCheckout  State = "NO_CHECKOUT"
	StateReconciling State = "RECONCILING"
	StateHasCheckout State = "HAS_CHECKOUT"
)

// Signal names the discrete events that re-trigger reconciliation. Nothing
// else does; price or color-selection changes after checkout creation go
// undetected on purpose.
type Signal string

const (
	SignalSessionChanged   Signal = "session-changed"
	SignalCartSizeChanged  Signal = "cart-size-changed"
	SignalAddressesChanged Signal = "addresses-changed"
)

// Reconciler ensures a non-empty cart of an authenticated visitor maps to
// exactly one live server-side checkout record. The remembered number in
// durable storage is the single source of truth for "the active checkout".
type Reconciler struct {
	api      API
	cart     Cart
	session  Session
	store    storage.Store
	notifier notify.Notifier

	mu      sync.Mutex
	state   State
	current *domain.Checkout

	sfg singleflight.Group // collapses concurrent ensure calls
}

func NewReconciler(api API, cart Cart, session Session, store storage.Store, notifier notify.Notifier) *Reconciler {
	return &Reconciler{
		api:      api,
		cart:     cart,
		session:  session,
		store:    store,
		notifier: notifier,
		state:    StateNoCheckout,
	}
}

// Ensure returns the active checkout, reusing the remembered one when the
// backend still knows it and creating a new one otherwise. Two calls in a
// row with no cart change produce exactly one remote creation.
func (r *Reconciler) Ensure(ctx context.Context) (*domain.Checkout, error) {
	v, err, _ := r.sfg.Do("ensure", func() (interface{}, error) {
		return r.ensure(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Checkout), nil
}

func (r *Reconciler) ensure(ctx context.Context) (*domain.Checkout, error) {
	userID, err := r.session.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if r.cart.Size() == 0 {
		// A checkout held for a now-empty cart is no longer valid.
		r.setState(StateNoCheckout, nil)
		return nil, ErrEmptyCart
	}

	r.setState(StateReconciling, nil)

	if number := r.rememberedNumber(ctx); number != "" {
		existing, err := r.api.GetCheckout(ctx, number)
		if err == nil {
			r.setState(StateHasCheckout, existing)
			return existing, nil
		}
		// Lookup miss or any other failure: the remembered number is
		// stale. Discard it and fall back to creation.
		log.Printf("checkout: lookup of %s failed, creating a new one: %v", number, err)
		if delErr := r.store.Delete(ctx, storage.KeyCheckoutNumber); delErr != nil {
			log.Printf("checkout: discard stale number failed: %v", delErr)
		}
	}

	payload := r.buildPayload(userID)
	created, err := r.api.AddCheckout(ctx, payload)
	if err != nil {
		r.notifier.Notify(notify.Notification{
			Level:       notify.LevelError,
			Title:       "Checkout Error",
			Description: "There was a problem saving your checkout information.",
		})
		r.setState(StateNoCheckout, nil)
		return nil, err
	}
	if created.Number == "" {
		r.notifier.Notify(notify.Notification{
			Level:       notify.LevelError,
			Title:       "Checkout Error",
			Description: "Could not create checkout. Please try again.",
		})
		r.setState(StateNoCheckout, nil)
		return nil, fmt.Errorf("checkout response missing number")
	}

	if err := r.store.Set(ctx, storage.KeyCheckoutNumber, []byte(created.Number)); err != nil {
		log.Printf("checkout: remember number failed: %v", err)
	}
	r.setState(StateHasCheckout, created)
	return created, nil
}

// HandleSignal re-runs reconciliation for one of the defined triggers. A
// session change drops the remembered number first so the new session gets a
// fresh record. An empty cart quietly resets instead of erroring.
func (r *Reconciler) HandleSignal(ctx context.Context, sig Signal) (*domain.Checkout, error) {
	if sig == SignalSessionChanged {
		if err := r.store.Delete(ctx, storage.KeyCheckoutNumber); err != nil {
			log.Printf("checkout: drop number on session change failed: %v", err)
		}
		r.setState(StateNoCheckout, nil)
	}

	checkout, err := r.Ensure(ctx)
	if errors.Is(err, ErrEmptyCart) {
		r.setState(StateNoCheckout, nil)
		return nil, nil
	}
	return checkout, err
}

// Reset forgets the active checkout, locally and in durable storage. Called
// after a successful capture, when the record's usefulness ends.
func (r *Reconciler) Reset(ctx context.Context) {
	if err := r.store.Delete(ctx, storage.KeyCheckoutNumber); err != nil {
		log.Printf("checkout: reset failed: %v", err)
	}
	r.setState(StateNoCheckout, nil)
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Current returns the checkout record for order-summary display, or nil.
func (r *Reconciler) Current() *domain.Checkout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Reconciler) setState(state State, current *domain.Checkout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.current = current
}

func (r *Reconciler) rememberedNumber(ctx context.Context) string {
	data, err := r.store.Get(ctx, storage.KeyCheckoutNumber)
	if errors.Is(err, storage.ErrNotFound) {
		return ""
	}
	if err != nil {
		log.Printf("checkout: read remembered number failed: %v", err)
		return ""
	}
	return string(data)
}

func (r *Reconciler) buildPayload(userID string) *domain.Checkout {
	lines := r.cart.Lines()
	items := make([]domain.CheckoutItem, 0, len(lines))
	for _, line := range lines {
		quantity := line.Quantity
		if quantity == 0 {
			quantity = 1
		}
		items = append(items, domain.CheckoutItem{
			ID:          line.ID,
			Name:        line.Name,
			Number:      line.Number,
			Description: line.Description,
			Category:    line.Category,
			ColorGroups: line.ColorGroups,
			Price:       line.Price,
			Amount:      quantity,
			ImgSrc:      line.ImgSrc,
			ObjectSrc:   line.ObjectSrc,
		})
	}
	return &domain.Checkout{
		UserID: userID,
		Items:  items,
		Sum:    r.cart.Totals().Total,
		Paid:   false,
		Date:   time.Now().UTC(),
	}
}
