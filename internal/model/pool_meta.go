package model

// PoolMeta carries the token pair attached to each decoded swap record.
type PoolMeta struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
	// Decimals0 and Decimals1 are optional; nil means "look up or default".
	Decimals0 *uint8 `json:"decimals0,omitempty"`
	Decimals1 *uint8 `json:"decimals1,omitempty"`
}
