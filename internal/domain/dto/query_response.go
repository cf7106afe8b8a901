package dto

import "github.com/guttosm/nsepulse/internal/domain/models"

// HighestVolumeResponse is returned by GET /api/highest_volume.
// HighestVolume is null when no record matches the filter.
type HighestVolumeResponse struct {
	HighestVolume *models.StockRecord `json:"highest_volume"`
}

// AverageCloseResponse is returned by GET /api/average_close.
type AverageCloseResponse struct {
	AverageClose *float64 `json:"average_close" swaggertype:"number" example:"1308.25"`
}

// AverageVWAPResponse is returned by GET /api/average_vwap.
type AverageVWAPResponse struct {
	AverageVWAP *float64 `json:"average_vwap" swaggertype:"number" example:"1307.5"`
}
