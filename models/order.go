package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var draftValidator = validator.New()

// Service is one of the storefront's purchasable services.
type Service string

const (
	ServiceAirtime     Service = "airtime"
	ServiceData        Service = "data"
	ServiceCable       Service = "cable"
	ServiceElectricity Service = "electricity"
)

// Valid reports whether s is a known service.
func (s Service) Valid() bool {
	switch s {
	case ServiceAirtime, ServiceData, ServiceCable, ServiceElectricity:
		return true
	}
	return false
}

// RequiresVerification reports whether the recipient must be resolved before purchase.
func (s Service) RequiresVerification() bool {
	return s == ServiceCable || s == ServiceElectricity
}

// OrderDraft is the not-yet-paid purchase intent handed from a funnel to the payment stage.
type OrderDraft struct {
	Service      Service   `json:"service" validate:"required,oneof=airtime data cable electricity"`
	Recipient    string    `json:"recipient" validate:"required"`
	Network      string    `json:"network" validate:"required"`
	PlanID       string    `json:"planId,omitempty"`
	PlanName     string    `json:"planName,omitempty"`
	Amount       float64   `json:"amount" validate:"gt=0"`
	Label        string    `json:"label" validate:"required"`
	CustomerName string    `json:"customerName,omitempty" validate:"required_if=Service cable,required_if=Service electricity"`
	MeterType    string    `json:"meterType,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Validate enforces the draft invariants: amount, recipient and, for verified
// services, the resolved customer name are always present.
func (d OrderDraft) Validate() error {
	return draftValidator.Struct(d)
}
