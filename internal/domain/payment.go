package domain

import "encoding/json"

// CaptureCompleted is the provider status that finalizes a payment. The
// capture response status is compared literally against this string.
const CaptureCompleted = "COMPLETED"

// PayPalOrder is the response to a create-order call.
type PayPalOrder struct {
	OrderID     string `json:"orderID"`
	ApprovalURL string `json:"approvalUrl"`
	Status      string `json:"status"`
}

// CaptureResult is the response to a capture-order call. Payer is kept
// opaque; nothing in the client inspects it.
type CaptureResult struct {
	Status  string          `json:"status"`
	OrderID string          `json:"orderId"`
	Payer   json.RawMessage `json:"payer,omitempty"`
}

// PendingOrder is the memo remembered between creating a remote order and
// returning from the provider, so the confirmation view can show the order
// id even when no callback parameters arrive.
type PendingOrder struct {
	OrderID string `json:"orderID"`
}
