package models

import "time"

// ChargeRequest is what the payment stage asks a gateway to collect.
type ChargeRequest struct {
	Reference string
	Email     string
	// Amount is in minor currency units.
	Amount   int64
	Currency string
	Metadata map[string]string
}

// GatewaySession carries what the storefront needs to open the gateway popup.
type GatewaySession struct {
	Gateway      string    `json:"gateway"`
	Key          string    `json:"key"`
	Email        string    `json:"email"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	Reference    string    `json:"reference"`
	ClientSecret string    `json:"clientSecret,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
