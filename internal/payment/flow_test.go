package payment

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amorokdeh/GemsFlare/internal/checkout"
	"github.com/amorokdeh/GemsFlare/internal/domain"
	"github.com/amorokdeh/GemsFlare/internal/notify"
	"github.com/amorokdeh/GemsFlare/internal/storage"
)

type mockAPI struct {
	m             sync.Mutex
	createCalls   int
	captureCalls  int
	createErr     error
	captureErr    error
	captureStatus string
	lastReturnURL string
	lastCancelURL string
	lastOrderID   string
	lastNumber    string
}

func (m *mockAPI) CreatePayPalOrder(_ context.Context, checkoutNumber, returnURL, cancelURL string) (*domain.PayPalOrder, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.createCalls++
	m.lastNumber = checkoutNumber
	m.lastReturnURL = returnURL
	m.lastCancelURL = cancelURL
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &domain.PayPalOrder{
		OrderID:     "ORD1",
		ApprovalURL: "https://paypal.example/approve/ORD1",
		Status:      "CREATED",
	}, nil
}

func (m *mockAPI) CapturePayPalOrder(_ context.Context, orderID, checkoutNumber string) (*domain.CaptureResult, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.captureCalls++
	m.lastOrderID = orderID
	m.lastNumber = checkoutNumber
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	status := m.captureStatus
	if status == "" {
		status = domain.CaptureCompleted
	}
	return &domain.CaptureResult{Status: status, OrderID: orderID}, nil
}

type mockCart struct {
	m          sync.Mutex
	size       int
	clearCalls int
}

func (c *mockCart) Size() int {
	c.m.Lock()
	defer c.m.Unlock()
	return c.size
}

func (c *mockCart) ClearCart(context.Context) {
	c.m.Lock()
	defer c.m.Unlock()
	c.clearCalls++
	c.size = 0
}

func (c *mockCart) cleared() int {
	c.m.Lock()
	defer c.m.Unlock()
	return c.clearCalls
}

type mockCheckouts struct {
	m          sync.Mutex
	number     string
	ensureErr  error
	resetCalls int
}

func (c *mockCheckouts) Ensure(context.Context) (*domain.Checkout, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.ensureErr != nil {
		return nil, c.ensureErr
	}
	return &domain.Checkout{Number: c.number}, nil
}

func (c *mockCheckouts) Reset(context.Context) {
	c.m.Lock()
	defer c.m.Unlock()
	c.resetCalls++
}

type mockSession struct {
	authenticated bool
}

func (s *mockSession) Authenticated(context.Context) bool { return s.authenticated }

type memStore struct {
	m    sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.m.Lock()
	defer s.m.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.data, key)
	return nil
}

type recordingNotifier struct {
	m             sync.Mutex
	notifications []notify.Notification
}

func (n *recordingNotifier) Notify(notification notify.Notification) {
	n.m.Lock()
	defer n.m.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *recordingNotifier) titles() []string {
	n.m.Lock()
	defer n.m.Unlock()
	titles := make([]string, 0, len(n.notifications))
	for _, notification := range n.notifications {
		titles = append(titles, notification.Title)
	}
	return titles
}

func shipping() *domain.DeliveryAddress {
	return &domain.DeliveryAddress{Name: "Ada", Street: "Main", Housenumber: "1"}
}

func newFlow(api *mockAPI, cart *mockCart, checkouts *mockCheckouts, session *mockSession, store *memStore, notifier *recordingNotifier) *Flow {
	return NewFlow(api, cart, checkouts, session, store, notifier, "https://shop.example")
}

func returnQuery() url.Values {
	return url.Values{"token": {"ORD1"}, "PayerID": {"P1"}}
}

func TestBegin_Success(t *testing.T) {
	api := &mockAPI{}
	store := newMemStore()
	sut := newFlow(api, &mockCart{size: 2}, &mockCheckouts{number: "CHK-1"}, &mockSession{authenticated: true}, store, &recordingNotifier{})

	approvalURL, err := sut.Begin(context.Background(), shipping())
	require.NoError(t, err)

	assert.Equal(t, "https://paypal.example/approve/ORD1", approvalURL)
	assert.Equal(t, domain.PaymentStepRedirecting, sut.Step())
	assert.Equal(t, "CHK-1", api.lastNumber)
	assert.Equal(t, "https://shop.example/return", api.lastReturnURL)
	assert.Equal(t, "https://shop.example/cancel", api.lastCancelURL)

	// The pending order memo is remembered for the confirmation view.
	assert.JSONEq(t, `{"orderID":"ORD1"}`, string(store.data[storage.KeyPendingOrder]))
}

func TestBegin_EmptyCart(t *testing.T) {
	notifier := &recordingNotifier{}
	sut := newFlow(&mockAPI{}, &mockCart{size: 0}, &mockCheckouts{number: "CHK-1"}, &mockSession{authenticated: true}, newMemStore(), notifier)

	_, err := sut.Begin(context.Background(), shipping())
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)
	assert.Equal(t, []string{"Cart is empty"}, notifier.titles())
	assert.Equal(t, domain.PaymentStepInitial, sut.Step())
}

func TestBegin_NoShippingAddress(t *testing.T) {
	notifier := &recordingNotifier{}
	sut := newFlow(&mockAPI{}, &mockCart{size: 1}, &mockCheckouts{number: "CHK-1"}, &mockSession{authenticated: true}, newMemStore(), notifier)

	_, err := sut.Begin(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoShippingAddress)
	assert.Equal(t, []string{"Shipping address required"}, notifier.titles())
}

func TestBegin_EnsureFailureReturnsToInitial(t *testing.T) {
	notifier := &recordingNotifier{}
	checkouts := &mockCheckouts{ensureErr: errors.New("backend down")}
	sut := newFlow(&mockAPI{}, &mockCart{size: 1}, checkouts, &mockSession{authenticated: true}, newMemStore(), notifier)

	_, err := sut.Begin(context.Background(), shipping())
	require.Error(t, err)
	assert.Equal(t, domain.PaymentStepInitial, sut.Step())
	assert.Contains(t, notifier.titles(), "Checkout failed")
}

func TestBegin_CreateOrderFailureReturnsToInitial(t *testing.T) {
	api := &mockAPI{createErr: errors.New("provider down")}
	sut := newFlow(api, &mockCart{size: 1}, &mockCheckouts{number: "CHK-1"}, &mockSession{authenticated: true}, newMemStore(), &recordingNotifier{})

	_, err := sut.Begin(context.Background(), shipping())
	require.Error(t, err)
	assert.Equal(t, domain.PaymentStepInitial, sut.Step())

	// The flow is re-armed; a manual retry may proceed.
	_, err = sut.Begin(context.Background(), shipping())
	assert.Error(t, err)
	assert.Equal(t, 2, api.createCalls)
}

func TestHandleReturn_CompletedCapture(t *testing.T) {
	api := &mockAPI{}
	cart := &mockCart{size: 2}
	checkouts := &mockCheckouts{number: "CHK-1"}
	store := newMemStore()
	store.data[storage.KeyCheckoutNumber] = []byte("CHK-1")
	notifier := &recordingNotifier{}
	sut := newFlow(api, cart, checkouts, &mockSession{authenticated: true}, store, notifier)

	result, err := sut.HandleReturn(context.Background(), returnQuery())
	require.NoError(t, err)

	assert.True(t, result.Confirmed)
	assert.Equal(t, "ORD1", result.OrderID)
	assert.Equal(t, PathConfirmation, result.Next)
	assert.Equal(t, domain.PaymentStepConfirmed, sut.Step())

	assert.Equal(t, 1, api.captureCalls)
	assert.Equal(t, "ORD1", api.lastOrderID)
	assert.Equal(t, "CHK-1", api.lastNumber)

	assert.Equal(t, 1, cart.cleared())
	assert.Equal(t, 1, checkouts.resetCalls)
	assert.Contains(t, notifier.titles(), "Payment successful")
}

func TestHandleReturn_CaptureOnce(t *testing.T) {
	api := &mockAPI{}
	cart := &mockCart{size: 2}
	store := newMemStore()
	store.data[storage.KeyCheckoutNumber] = []byte("CHK-1")
	sut := newFlow(api, cart, &mockCheckouts{number: "CHK-1"}, &mockSession{authenticated: true}, store, &recordingNotifier{})

	first, err := sut.HandleReturn(context.Background(), returnQuery())
	require.NoError(t, err)
	second, err := sut.HandleReturn(context.Background(), returnQuery())
	require.NoError(t, err)

	// Two rapid invocations with identical parameters, one capture call.
	assert.Equal(t, 1, api.captureCalls)
	assert.True(t, first.Confirmed)
	assert.True(t, second.Confirmed)
	assert.Equal(t, "ORD1", second.OrderID)
	assert.Equal(t, 1, cart.cleared())
}

func TestHandleReturn_NotCompleted(t *testing.T) {
	api := &mockAPI{captureStatus: "PENDING"}
	cart := &mockCart{size: 2}
	checkouts := &mockCheckouts{number: "CHK-1"}
	notifier := &recordingNotifier{}
	sut := newFlow(api, cart, checkouts, &mockSession{authenticated: true}, newMemStore(), notifier)

	result, err := sut.HandleReturn(context.Background(), returnQuery())
	require.NoError(t, err)

	assert.False(t, result.Confirmed)
	assert.Equal(t, PathCheckout, result.Next)
	assert.Equal(t, domain.PaymentStepFailed, sut.Step())
	assert.Contains(t, notifier.titles(), "Payment not completed")
	// Neither outcome short of COMPLETED touches the cart.
	assert.Zero(t, cart.cleared())
	assert.Zero(t, checkouts.resetCalls)
}

func TestHandleReturn_VerificationFailed(t *testing.T) {
	api := &mockAPI{captureErr: errors.New("network")}
	cart := &mockCart{size: 2}
	notifier := &recordingNotifier{}
	sut := newFlow(api, cart, &mockCheckouts{number: "CHK-1"}, &mockSession{authenticated: true}, newMemStore(), notifier)

	result, err := sut.HandleReturn(context.Background(), returnQuery())
	require.NoError(t, err)

	assert.Equal(t, PathCheckout, result.Next)
	assert.Contains(t, notifier.titles(), "Payment verification failed")
	assert.Zero(t, cart.cleared())
	// No automatic retry: a second invocation stays latched.
	_, err = sut.HandleReturn(context.Background(), returnQuery())
	require.NoError(t, err)
	assert.Equal(t, 1, api.captureCalls)
}

func TestHandleReturn_Cancelled(t *testing.T) {
	api := &mockAPI{}
	cart := &mockCart{size: 2}
	notifier := &recordingNotifier{}
	sut := newFlow(api, cart, &mockCheckouts{number: "CHK-1"}, &mockSession{authenticated: true}, newMemStore(), notifier)

	result, err := sut.HandleReturn(context.Background(), url.Values{"cancelled": {"true"}})
	require.NoError(t, err)

	assert.Equal(t, PathCheckout, result.Next)
	assert.Zero(t, api.captureCalls)
	assert.Zero(t, cart.cleared())
	assert.Equal(t, []string{"Payment cancelled"}, notifier.titles())
	assert.Equal(t, domain.PaymentStepInitial, sut.Step())
}

func TestHandleReturn_CancelThenResubmit(t *testing.T) {
	api := &mockAPI{}
	sut := newFlow(api, &mockCart{size: 2}, &mockCheckouts{number: "CHK-1"}, &mockSession{authenticated: true}, newMemStore(), &recordingNotifier{})

	_, err := sut.Begin(context.Background(), shipping())
	require.NoError(t, err)

	_, err = sut.HandleReturn(context.Background(), url.Values{"cancelled": {"true"}})
	require.NoError(t, err)

	// Abandoning at the provider releases the flow for another attempt.
	approvalURL, err := sut.Begin(context.Background(), shipping())
	require.NoError(t, err)
	assert.NotEmpty(t, approvalURL)
	assert.Equal(t, 2, api.createCalls)
	assert.Zero(t, api.captureCalls)
}

func TestHandleReturn_Unauthenticated(t *testing.T) {
	api := &mockAPI{}
	sut := newFlow(api, &mockCart{size: 2}, &mockCheckouts{number: "CHK-1"}, &mockSession{}, newMemStore(), &recordingNotifier{})

	result, err := sut.HandleReturn(context.Background(), returnQuery())
	require.NoError(t, err)

	assert.Equal(t, PathCheckout, result.Next)
	assert.Zero(t, api.captureCalls)
}

func TestHandleReturn_NoParamsUsesPendingOrderOnce(t *testing.T) {
	store := newMemStore()
	store.data[storage.KeyPendingOrder] = []byte(`{"orderID":"ORD9"}`)
	sut := newFlow(&mockAPI{}, &mockCart{size: 0}, &mockCheckouts{}, &mockSession{authenticated: true}, store, &recordingNotifier{})

	result, err := sut.HandleReturn(context.Background(), url.Values{})
	require.NoError(t, err)
	assert.Equal(t, "ORD9", result.OrderID)
	assert.Equal(t, PathConfirmation, result.Next)

	// The memo is consumed; a later visit shows nothing stale.
	_, ok := store.data[storage.KeyPendingOrder]
	assert.False(t, ok)
}

func TestReset_RearmsLatch(t *testing.T) {
	api := &mockAPI{}
	store := newMemStore()
	store.data[storage.KeyCheckoutNumber] = []byte("CHK-1")
	sut := newFlow(api, &mockCart{size: 2}, &mockCheckouts{number: "CHK-1"}, &mockSession{authenticated: true}, store, &recordingNotifier{})

	_, err := sut.HandleReturn(context.Background(), returnQuery())
	require.NoError(t, err)
	sut.Reset()
	assert.Equal(t, domain.PaymentStepInitial, sut.Step())

	_, err = sut.HandleReturn(context.Background(), returnQuery())
	require.NoError(t, err)
	assert.Equal(t, 2, api.captureCalls)
}
