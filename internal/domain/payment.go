package domain

import (
	"encoding/json"
	"strings"
)

// PaymentMethod is the shopper-facing payment choice.
type PaymentMethod string

const (
	MethodCard PaymentMethod = "card"
	MethodPix  PaymentMethod = "pix"
)

// ParsePaymentMethod normalises user input; ok is false for unknown methods.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "card", "credit_card", "debit_card":
		return MethodCard, true
	case "pix":
		return MethodPix, true
	default:
		return "", false
	}
}

// SettlementStatus is the outcome of a payment attempt as reported by the backend.
type SettlementStatus string

const (
	SettlementCompleted SettlementStatus = "COMPLETED"
	SettlementPending   SettlementStatus = "PENDING"
	SettlementFailed    SettlementStatus = "FAILED"
	SettlementRefunded  SettlementStatus = "REFUNDED"
)

// Approved reports whether the payment was captured.
func (s SettlementStatus) Approved() bool {
	switch strings.ToUpper(string(s)) {
	case "COMPLETED", "APPROVED", "PAID", "SUCCEEDED":
		return true
	}
	return false
}

// Pending reports whether the payment awaits shopper or PSP action (Pix transfer).
func (s SettlementStatus) Pending() bool {
	switch strings.ToUpper(string(s)) {
	case "PENDING", "IN_PROCESS", "AUTHORIZED":
		return true
	}
	return false
}

// Successful is true for any outcome that lets checkout finish.
func (s SettlementStatus) Successful() bool { return s.Approved() || s.Pending() }

// Settlement is the backend response to a payment submission.
type Settlement struct {
	PaymentID     ID               `json:"paymentId,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
	Amount        Money            `json:"amount"`
	Status        SettlementStatus `json:"status"`
	QRCode        string           `json:"qrCode,omitempty"`
	QRCodeBase64  string           `json:"qrCodeBase64,omitempty"`
	TicketURL     string           `json:"ticketUrl,omitempty"`
}

// UnmarshalJSON keeps the status verbatim, only trimming whitespace.
func (s *Settlement) UnmarshalJSON(data []byte) error {
	type alias Settlement
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw.Status = SettlementStatus(strings.TrimSpace(string(raw.Status)))
	raw.TransactionID = strings.TrimSpace(raw.TransactionID)
	*s = Settlement(raw)
	return nil
}

// PaymentAttempt records one submission. Every attempt carries its own key.
type PaymentAttempt struct {
	Method         PaymentMethod    `json:"method"`
	IdempotencyKey string           `json:"idempotencyKey"`
	Status         SettlementStatus `json:"status,omitempty"`
	Error          string           `json:"error,omitempty"`
}
