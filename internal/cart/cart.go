// Package cart owns the single in-memory representation of what the current
// visitor intends to buy, mirrored to durable storage after every mutation.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/amorokdeh/GemsFlare/internal/domain"
	"github.com/amorokdeh/GemsFlare/internal/notify"
	"github.com/amorokdeh/GemsFlare/internal/storage"
)

// Service keeps cart lines keyed by item id. Quantities never exceed the
// stock ceiling recorded on the line's item snapshot; violations clamp and
// warn instead of failing. The in-memory state stays authoritative even when
// persistence fails.
type Service struct {
	mu       sync.Mutex
	lines    []domain.CartLine
	store    storage.Store
	notifier notify.Notifier
}

// NewService restores any previously persisted cart. A corrupt entry is
// discarded and the cart starts empty.
func NewService(ctx context.Context, store storage.Store, notifier notify.Notifier) *Service {
	s := &Service{store: store, notifier: notifier}

	data, err := store.Get(ctx, storage.KeyCart)
	if errors.Is(err, storage.ErrNotFound) {
		return s
	}
	if err != nil {
		log.Printf("cart: load failed: %v", err)
		return s
	}
	if err := json.Unmarshal(data, &s.lines); err != nil {
		log.Printf("cart: discarding corrupt entry: %v", err)
		s.lines = nil
		if delErr := store.Delete(ctx, storage.KeyCart); delErr != nil {
			log.Printf("cart: delete corrupt entry failed: %v", delErr)
		}
	}
	return s
}

// AddToCart inserts the item or raises the quantity of an existing line,
// clamped to the item's stock. An out-of-stock item is a warning and a
// no-op. selectedColors may be nil.
func (s *Service) AddToCart(ctx context.Context, item domain.Item, quantity int, selectedColors map[string]string) {
	if item.Amount == 0 {
		s.notifier.Notify(notify.Notification{
			Level:       notify.LevelWarning,
			Title:       "Out of stock",
			Description: fmt.Sprintf("%s is currently out of stock.", item.Name),
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(item.ID); i >= 0 {
		newQuantity := s.lines[i].Quantity + quantity
		if newQuantity > item.Amount {
			s.warnLimitedStock(item)
			newQuantity = item.Amount
		}
		s.lines[i].Quantity = newQuantity
		s.persist(ctx)
		return
	}

	safeQuantity := quantity
	if safeQuantity > item.Amount {
		s.warnLimitedStock(item)
		safeQuantity = item.Amount
	} else {
		s.notifier.Notify(notify.Notification{
			Level:       notify.LevelInfo,
			Title:       "Added to cart",
			Description: fmt.Sprintf("%s has been added to your cart.", item.Name),
		})
	}
	s.lines = append(s.lines, domain.CartLine{
		Item:           item,
		Quantity:       safeQuantity,
		SelectedColors: selectedColors,
	})
	s.persist(ctx)
}

// RemoveFromCart drops the line unconditionally; absent ids are a no-op.
func (s *Service) RemoveFromCart(ctx context.Context, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, line := range s.lines {
		if line.ID == itemID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			break
		}
	}
	s.persist(ctx)
}

// UpdateQuantity sets the line's quantity, clamped to the stock ceiling
// recorded on the line. Callers are expected to pass values >= 1.
func (s *Service) UpdateQuantity(ctx context.Context, itemID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].ID != itemID {
			continue
		}
		if quantity > s.lines[i].Amount {
			s.warnLimitedStock(s.lines[i].Item)
			quantity = s.lines[i].Amount
		}
		s.lines[i].Quantity = quantity
		break
	}
	s.persist(ctx)
}

// ClearCart empties the cart and removes the durable entry.
func (s *Service) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	if err := s.store.Delete(ctx, storage.KeyCart); err != nil {
		log.Printf("cart: clear storage failed: %v", err)
	}
}

// TotalItems is the sum of quantities across lines.
func (s *Service) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

// TotalPrice is the sum of price times quantity across lines.
func (s *Service) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subtotalLocked()
}

func (s *Service) InCart(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(itemID) >= 0
}

// Size is the number of distinct lines. Reconciliation re-triggers on this,
// not on quantity or price changes.
func (s *Service) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Lines returns a copy of the current lines in insertion order.
func (s *Service) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]domain.CartLine, len(s.lines))
	copy(lines, s.lines)
	return lines
}

const (
	flatShipping = 5.99
	vatRate      = 0.19
)

// Totals computes the order summary: flat shipping on any non-empty cart
// plus 19% VAT on the subtotal.
func (s *Service) Totals() domain.OrderTotals {
	s.mu.Lock()
	defer s.mu.Unlock()

	subtotal := s.subtotalLocked()
	shipping := 0.0
	if subtotal > 0 {
		shipping = flatShipping
	}
	tax := subtotal * vatRate
	return domain.OrderTotals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal + shipping + tax,
	}
}

func (s *Service) subtotalLocked() float64 {
	total := 0.0
	for _, line := range s.lines {
		total += line.Subtotal()
	}
	return total
}

func (s *Service) indexOf(itemID string) int {
	for i, line := range s.lines {
		if line.ID == itemID {
			return i
		}
	}
	return -1
}

func (s *Service) warnLimitedStock(item domain.Item) {
	s.notifier.Notify(notify.Notification{
		Level:       notify.LevelWarning,
		Title:       "Limited stock",
		Description: fmt.Sprintf("Only %d units of %s are available.", item.Amount, item.Name),
	})
}

// persist mirrors the full line list to storage. Failures are logged and
// non-fatal; the in-memory state remains authoritative for this session.
func (s *Service) persist(ctx context.Context) {
	data, err := json.Marshal(s.lines)
	if err != nil {
		log.Printf("cart: marshal failed: %v", err)
		return
	}
	if err := s.store.Set(ctx, storage.KeyCart, data); err != nil {
		log.Printf("cart: persist failed: %v", err)
	}
}
