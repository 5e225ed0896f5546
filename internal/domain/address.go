package domain

import (
	"fmt"
	"strings"
)

// Address is the delivery address collected during checkout.
type Address struct {
	PostalCode   string `json:"postalCode"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// Normalize trims every field and upper-cases the state code.
func (a Address) Normalize() Address {
	return Address{
		PostalCode:   DigitsOnly(a.PostalCode),
		Street:       strings.TrimSpace(a.Street),
		Number:       strings.TrimSpace(a.Number),
		Complement:   strings.TrimSpace(a.Complement),
		Neighborhood: strings.TrimSpace(a.Neighborhood),
		City:         strings.TrimSpace(a.City),
		State:        strings.ToUpper(strings.TrimSpace(a.State)),
	}
}

// Missing lists required fields that are empty. Complement is optional.
func (a Address) Missing() []string {
	var out []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			out = append(out, name)
		}
	}
	check("postalCode", a.PostalCode)
	check("street", a.Street)
	check("number", a.Number)
	check("neighborhood", a.Neighborhood)
	check("city", a.City)
	check("state", a.State)
	return out
}

// Line renders the address as the single line stored on the user profile.
func (a Address) Line() string {
	var b strings.Builder
	b.WriteString(a.Street)
	if a.Number != "" {
		b.WriteString(", ")
		b.WriteString(a.Number)
	}
	if a.Complement != "" {
		b.WriteString(" - ")
		b.WriteString(a.Complement)
	}
	if a.Neighborhood != "" {
		b.WriteString(", ")
		b.WriteString(a.Neighborhood)
	}
	if a.City != "" || a.State != "" {
		fmt.Fprintf(&b, ", %s/%s", a.City, a.State)
	}
	if len(a.PostalCode) == 8 {
		fmt.Fprintf(&b, ", CEP %s-%s", a.PostalCode[:5], a.PostalCode[5:])
	}
	return b.String()
}

// DigitsOnly strips every non-digit rune.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeTaxID strips punctuation from a CPF.
func NormalizeTaxID(raw string) string { return DigitsOnly(raw) }

// ValidTaxID reports whether the CPF has exactly 11 digits after stripping.
func ValidTaxID(raw string) bool { return len(NormalizeTaxID(raw)) == 11 }

// NormalizePhone strips punctuation from a phone number.
func NormalizePhone(raw string) string { return DigitsOnly(raw) }

// ValidPhone accepts 10 (landline) or 11 (mobile) digit numbers.
func ValidPhone(raw string) bool {
	n := len(NormalizePhone(raw))
	return n == 10 || n == 11
}
