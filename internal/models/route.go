package models

import "time"

// RouterResponse is the body returned by both router versions.
type RouterResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    []Path `json:"data"` // nil when the router returned no data
}

// HasData reports whether the response carried a path list at all.
func (r *RouterResponse) HasData() bool {
	return r != nil && r.Data != nil
}

// Path is one candidate route. Quantitative fields are optional: an infeasible
// candidate omits them and must never be compared.
type Path struct {
	Amount      *string  `json:"amount,omitempty"`
	Fee         *string  `json:"fee,omitempty"`
	Impact      *string  `json:"impact,omitempty"`
	InUSD       *string  `json:"inUsd,omitempty"`
	OutUSD      *string  `json:"outUsd,omitempty"`
	Pool        []string `json:"pool,omitempty"`
	RoadForAddr []string `json:"roadForAddr,omitempty"`
	RoadForName []string `json:"roadForName,omitempty"`
	Cast        uint32   `json:"cast,omitempty"`
}

// Feasible reports whether the path carries an output amount.
func (p *Path) Feasible() bool {
	return p.Amount != nil
}

// CompareResult holds the relative differences between two topology-matched
// paths. A nil difference means the field could not be compared (absent on
// either side, unparseable, or zero on the old side).
type CompareResult struct {
	OldIndex int
	NewIndex int

	OldAmount string
	NewAmount string

	DiffAmount *float64
	DiffFee    *float64
	DiffImpact *float64
	DiffInUSD  *float64
	DiffOutUSD *float64

	PoolEqual     bool
	RoadAddrEqual bool
}

// TopologyEqual reports whether both route descriptions matched exactly.
func (c *CompareResult) TopologyEqual() bool {
	return c.PoolEqual && c.RoadAddrEqual
}

// Divergence is the detail record written for a matched pair whose amounts
// differ by more than the configured threshold.
type Divergence struct {
	RunID       string       `json:"run_id"`
	RecordIndex uint64       `json:"record_index"`
	OldIndex    int          `json:"old_index"`
	NewIndex    int          `json:"new_index"`
	Request     *SwapRequest `json:"request"`
	Old         Path         `json:"old"`
	New         Path         `json:"new"`
	DiffAmount  float64      `json:"diff_amount"`
	DetectedAt  time.Time    `json:"detected_at"`
}

// StrPtr is a small helper for building optional decimal fields.
func StrPtr(s string) *string {
	return &s
}
