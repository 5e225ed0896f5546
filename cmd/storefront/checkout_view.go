package main

import (
	"github.com/KelvenAlvess/marketplace-storefront/internal/api"
	"github.com/KelvenAlvess/marketplace-storefront/internal/checkout"
	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
)

type inlineError struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Fields      map[string]string `json:"fields,omitempty"`
	FieldLabels map[string]string `json:"field_labels,omitempty"`
}

type checkoutView struct {
	State         checkout.State            `json:"state"`
	OrderID       domain.ID                 `json:"orderId"`
	OrderStatus   domain.OrderStatus        `json:"orderStatus"`
	Items         []domain.OrderItem        `json:"items"`
	PostalCode    string                    `json:"postalCode,omitempty"`
	Options       []domain.ShippingOption   `json:"shippingOptions"`
	Selection     *domain.ShippingSelection `json:"shipping,omitempty"`
	Calculating   bool                      `json:"calculating"`
	Submitting    bool                      `json:"submitting"`
	ItemsSubtotal domain.Money              `json:"itemsSubtotal"`
	ShippingPrice domain.Money              `json:"shippingPrice"`
	FinalAmount   domain.Money              `json:"finalAmount"`
	ShippingError *inlineError              `json:"shippingError,omitempty"`
	Error         *inlineError              `json:"error,omitempty"`
	Settlement    *domain.Settlement        `json:"settlement,omitempty"`
	Attempts      []domain.PaymentAttempt   `json:"attempts"`
	PixQRCodeURL  string                    `json:"pixQrCodeUrl,omitempty"`
}

func (s *server) inline(lang string, err error) *inlineError {
	if err == nil {
		return nil
	}
	kind := domain.KindOf(err)
	if kind == "" {
		kind = "internal_error"
	}
	out := &inlineError{Code: string(kind), Message: s.message(lang, err)}
	if fields := domain.FieldsOf(err); len(fields) > 0 {
		out.Fields = map[string]string(fields)
		out.FieldLabels = s.fieldLabels(lang, fields)
	}
	return out
}

func (s *server) buildCheckoutView(lang string, v checkout.View) checkoutView {
	out := checkoutView{
		State:         v.State,
		OrderID:       v.OrderID,
		OrderStatus:   v.Order.Status,
		Items:         v.Order.Items,
		PostalCode:    v.PostalCode,
		Options:       v.Options,
		Selection:     v.Selection,
		Calculating:   v.Calculating,
		Submitting:    v.Submitting,
		ItemsSubtotal: v.ItemsSubtotal,
		ShippingPrice: v.ShippingPrice,
		FinalAmount:   v.FinalAmount,
		ShippingError: s.inline(lang, v.ShippingError),
		Error:         s.inline(lang, v.Error),
		Settlement:    v.Settlement,
		Attempts:      v.Attempts,
	}
	if out.Items == nil {
		out.Items = []domain.OrderItem{}
	}
	if out.Options == nil {
		out.Options = []domain.ShippingOption{}
	}
	if out.Attempts == nil {
		out.Attempts = []domain.PaymentAttempt{}
	}
	if v.Settlement != nil && (v.Settlement.QRCode != "" || v.Settlement.QRCodeBase64 != "") {
		out.PixQRCodeURL = api.PathEscape("checkout", v.OrderID.String(), "pix.png")
	}
	return out
}
