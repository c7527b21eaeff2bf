package server

import "github.com/sig-0/cbrates/storage/types"

type RateResponse struct {
	Date     string         `json:"date"`
	Currency types.Currency `json:"currency"`
	Base     types.Currency `json:"base"`
	Rate     float64        `json:"rate"`
}

type RateChangeResponse struct {
	Date         string         `json:"date"`
	Currency     types.Currency `json:"currency"`
	Base         types.Currency `json:"base"`
	Rate         float64        `json:"rate"`
	PreviousRate float64        `json:"previous_rate"`
	Difference   float64        `json:"difference"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
