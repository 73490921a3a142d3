package models

// PriceSampleRequest is the body of POST /api/outcomes/sample, reported by
// external alert-delivery or trading observers.
type PriceSampleRequest struct {
	AlertID  string  `json:"alert_id" validate:"required"`
	Interval string  `json:"interval" validate:"required,oneof=15m 1h 4h 1d"`
	Price    float64 `json:"price" validate:"required,gt=0"`
	Volume   float64 `json:"volume" validate:"gte=0"`
}

// ApproveWeightsRequest commits pending recommendations (manual mode). When
// Names is empty every pending recommendation is applied.
type ApproveWeightsRequest struct {
	Names []string `json:"names"`
	Note  string   `json:"note" default:"manual approval"`
}

// RecentScoresRequest bounds GET /api/scores/:ticker.
type RecentScoresRequest struct {
	Limit int `query:"limit" default:"20" validate:"gte=1,lte=200"`
}
