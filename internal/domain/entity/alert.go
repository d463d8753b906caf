package entity

import (
	"fmt"
	"time"
)

// AlertCondition is the direction of a price alert.
type AlertCondition string

const (
	AlertAbove AlertCondition = "above"
	AlertBelow AlertCondition = "below"
)

// Valid reports whether c is a known condition.
func (c AlertCondition) Valid() bool {
	return c == AlertAbove || c == AlertBelow
}

// PriceAlert is a one-shot price trigger. Active -> Triggered is one way; a triggered
// alert stays until it is removed.
type PriceAlert struct {
	ID           string         `json:"id"`
	TokenAddress string         `json:"tokenAddress"`
	TokenSymbol  string         `json:"tokenSymbol"`
	TokenName    string         `json:"tokenName"`
	Condition    AlertCondition `json:"condition"`
	TargetPrice  float64        `json:"targetPrice"`
	CreatedAt    time.Time      `json:"createdAt"`
	Triggered    bool           `json:"triggered,omitempty"`
	TriggeredAt  *time.Time     `json:"triggeredAt,omitempty"`
}

// Crossed reports whether price satisfies the alert condition.
func (a PriceAlert) Crossed(price float64) bool {
	switch a.Condition {
	case AlertAbove:
		return price >= a.TargetPrice
	case AlertBelow:
		return price <= a.TargetPrice
	default:
		return false
	}
}

// Message is the human readable notification body for a triggered alert.
func (a PriceAlert) Message(price float64) string {
	return fmt.Sprintf("%s is %s $%g (now $%g)", a.TokenSymbol, a.Condition, a.TargetPrice, price)
}

// NewAlertInput is what a user submits to create an alert.
type NewAlertInput struct {
	TokenAddress string         `json:"tokenAddress"`
	TokenSymbol  string         `json:"tokenSymbol"`
	TokenName    string         `json:"tokenName"`
	Condition    AlertCondition `json:"condition"`
	TargetPrice  float64        `json:"targetPrice"`
}
