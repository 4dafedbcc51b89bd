// ============================================================================
// models/swap.go
// ============================================================================
package models

import "fmt"

// SwapRequest is one routing lookup recovered from a service log line.
type SwapRequest struct {
	FromToken     string `json:"fromToken"`
	ToToken       string `json:"toToken"`
	FromTokenAddr string `json:"fromTokenAddr"`
	ToTokenAddr   string `json:"toTokenAddr"`
	InAmount      string `json:"inAmount"` // raw integer amount as a decimal string
	FromDecimal   uint16 `json:"fromDecimal"`
	ToDecimal     uint16 `json:"toDecimal"`
}

// Pair returns the dedup key for the request. Direction matters: USDT_TRX and
// TRX_USDT are different pairs.
func (r *SwapRequest) Pair() string {
	return fmt.Sprintf("%s_%s", r.FromToken, r.ToToken)
}
