package models

import "time"

// Fulfillment is the payload of a paid order awaiting its success notification.
type Fulfillment struct {
	TabID     string     `json:"tabId"`
	Reference string     `json:"reference"`
	Draft     OrderDraft `json:"draft"`
	Fee       float64    `json:"fee"`
	Total     float64    `json:"total"`
	PaidAt    time.Time  `json:"paidAt"`
}

// SuccessMessage is the notification text shown once the order is processed.
func (f Fulfillment) SuccessMessage() string {
	return f.Draft.Label + " for " + f.Draft.Recipient + " was successful."
}
