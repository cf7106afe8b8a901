package models

import "time"

// StockRecord represents one trading day for one symbol, as read from a daily
// equity CSV and persisted in the stock_records table.
//
// DeliverableVolume and PercentDeliverable are optional in the source file and
// are stored as NULL when absent.
//
// swagger:model StockRecord
type StockRecord struct {
	Date               time.Time `json:"date" example:"2015-01-01T00:00:00Z"`
	Symbol             string    `json:"symbol" example:"TCS"`
	Series             string    `json:"series" example:"EQ"`
	PrevClose          float64   `json:"prev_close" example:"1300"`
	Open               float64   `json:"open" example:"1310"`
	High               float64   `json:"high" example:"1320"`
	Low                float64   `json:"low" example:"1290"`
	Last               float64   `json:"last" example:"1305"`
	Close              float64   `json:"close" example:"1308"`
	VWAP               float64   `json:"vwap" example:"1307.5"`
	Volume             int64     `json:"volume" example:"100000"`
	Turnover           float64   `json:"turnover" example:"130000000"`
	Trades             int64     `json:"trades" example:"500"`
	DeliverableVolume  *int64    `json:"deliverable_volume" swaggertype:"integer" example:"45000"`
	PercentDeliverable *float64  `json:"percent_deliverable" swaggertype:"number" example:"0.45"`
}
