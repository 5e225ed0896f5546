package domain

import (
	"encoding/json"
	"strings"
)

// ShippingOption is one carrier quote for a postal code. Options are ephemeral
// and recomputed on every lookup.
type ShippingOption struct {
	Name  string `json:"name"`
	Price Money  `json:"price"`
	Days  int    `json:"days"`
}

// UnmarshalJSON accepts the resolver payload and its older field names.
func (o *ShippingOption) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name          string `json:"name"`
		Service       string `json:"service"`
		Price         Money  `json:"price"`
		Days          *int   `json:"days"`
		DeliveryTime  *int   `json:"deliveryTime"`
		EstimatedDays *int   `json:"estimatedDays"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = ShippingOption{
		Name:  strings.TrimSpace(raw.Name),
		Price: raw.Price,
	}
	if o.Name == "" {
		o.Name = strings.TrimSpace(raw.Service)
	}
	switch {
	case raw.Days != nil:
		o.Days = *raw.Days
	case raw.DeliveryTime != nil:
		o.Days = *raw.DeliveryTime
	case raw.EstimatedDays != nil:
		o.Days = *raw.EstimatedDays
	}
	return nil
}

// ShippingSelection is the single option chosen by the shopper for a postal code.
type ShippingSelection struct {
	PostalCode string         `json:"postalCode"`
	Option     ShippingOption `json:"option"`
}
