package models

// Requests for the HTTP endpoints. Defined in domain for consistency and reuse.

type CandlesRequest struct {
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=500"`
	Source string `query:"source" json:"source" default:"live" validate:"oneof=live archive"`
}

type SignalsRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=100"`
}
