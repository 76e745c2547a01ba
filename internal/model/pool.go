package model

import "time"

// Pool is a registered pool row for storage.
type Pool struct {
	Address      string         `json:"address"`
	Tokens       []TokenScaling `json:"tokens"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// TokenScaling pairs a token with its fixed-point scaling factor (decimal string).
type TokenScaling struct {
	Token   string `json:"token"`
	Scaling string `json:"scaling"`
}
