package dto

import (
	"fmt"
	"math"
	"strings"
	"time"

	"payloom/internal/core/domain"

	"github.com/google/uuid"
)

// MpesaCallback is the Daraja STK push result envelope.
type MpesaCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ToPaymentEvent normalizes an M-Pesa callback. The order id travels in the
// AccountReference metadata item set at STK initiation; the receipt number is
// the idempotency reference.
func (cb *MpesaCallback) ToPaymentEvent() (domain.PaymentEvent, error) {
	var (
		orderRef string
		receipt  string
		amount   int64
	)
	for _, item := range cb.Body.StkCallback.CallbackMetadata.Item {
		switch item.Name {
		case "AccountReference":
			orderRef, _ = item.Value.(string)
		case "MpesaReceiptNumber":
			receipt, _ = item.Value.(string)
		case "Amount":
			if v, ok := item.Value.(float64); ok {
				amount = int64(math.Round(v * 100))
			}
		}
	}
	if receipt == "" {
		receipt = cb.Body.StkCallback.CheckoutRequestID
	}
	if receipt == "" {
		return domain.PaymentEvent{}, fmt.Errorf("mpesa callback missing receipt and checkout request id")
	}

	orderID, err := uuid.Parse(orderRef)
	if err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("mpesa callback order reference %q: %w", orderRef, err)
	}

	outcome := domain.PaymentCompleted
	if cb.Body.StkCallback.ResultCode != 0 {
		outcome = domain.PaymentFailed
	}

	return domain.PaymentEvent{
		ID:          uuid.New(),
		OrderID:     orderID,
		Provider:    "mpesa",
		ProviderRef: receipt,
		Amount:      amount,
		Outcome:     outcome,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// IntaSendWebhook is the IntaSend payment event shape.
type IntaSendWebhook struct {
	InvoiceID string `json:"invoice_id"`
	State     string `json:"state"`
	APIRef    string `json:"api_ref"` // carries the order id
	Value     int64  `json:"value"`   // minor units
	MpesaRef  string `json:"mpesa_reference"`
}

// ToPaymentEvent normalizes an IntaSend webhook.
func (w *IntaSendWebhook) ToPaymentEvent() (domain.PaymentEvent, error) {
	ref := w.MpesaRef
	if ref == "" {
		ref = w.InvoiceID
	}
	if ref == "" {
		return domain.PaymentEvent{}, fmt.Errorf("intasend webhook missing reference")
	}

	orderID, err := uuid.Parse(w.APIRef)
	if err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("intasend webhook api_ref %q: %w", w.APIRef, err)
	}

	outcome := domain.PaymentFailed
	if strings.EqualFold(w.State, "COMPLETE") || strings.EqualFold(w.State, "COMPLETED") {
		outcome = domain.PaymentCompleted
	}

	return domain.PaymentEvent{
		ID:          uuid.New(),
		OrderID:     orderID,
		Provider:    "intasend",
		ProviderRef: ref,
		Amount:      w.Value,
		Outcome:     outcome,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// PesapalWebhook is the Pesapal IPN shape.
type PesapalWebhook struct {
	OrderTrackingID        string `json:"OrderTrackingId"`
	OrderMerchantReference string `json:"OrderMerchantReference"` // carries the order id
	Status                 string `json:"status"`
	Amount                 int64  `json:"amount"` // minor units
}

// ToPaymentEvent normalizes a Pesapal IPN.
func (w *PesapalWebhook) ToPaymentEvent() (domain.PaymentEvent, error) {
	if w.OrderTrackingID == "" {
		return domain.PaymentEvent{}, fmt.Errorf("pesapal webhook missing tracking id")
	}

	orderID, err := uuid.Parse(w.OrderMerchantReference)
	if err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("pesapal webhook merchant reference %q: %w", w.OrderMerchantReference, err)
	}

	outcome := domain.PaymentFailed
	if strings.EqualFold(w.Status, "COMPLETED") {
		outcome = domain.PaymentCompleted
	}

	return domain.PaymentEvent{
		ID:          uuid.New(),
		OrderID:     orderID,
		Provider:    "pesapal",
		ProviderRef: w.OrderTrackingID,
		Amount:      w.Amount,
		Outcome:     outcome,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
