package mockrouter

import (
	"net/http"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/routediff/internal/constants"
	"github.com/aman-zulfiqar/routediff/internal/models"
)

// Hub token used for the two-hop candidate path.
const (
	hubToken = "WTRX"
	hubAddr  = "TNUC9Qb1rRpS5CbWLmNMxXBjyFoydXjWFR"
)

// Fee rates per hop for the three candidate paths.
var (
	directFee = decimal.RequireFromString("0.003")
	hubFee    = decimal.RequireFromString("0.005")
	slowFee   = decimal.RequireFromString("0.01")
)

// Handlers serves deterministic routing responses
type Handlers struct {
	skew      decimal.Decimal
	failFirst int64
	requests  atomic.Int64
}

func NewHandlers(cfg Config) *Handlers {
	return &Handlers{
		skew:      decimal.NewFromFloat(1 + cfg.Skew),
		failFirst: int64(cfg.FailFirst),
	}
}

// Requests returns how many routing requests were received
func (h *Handlers) Requests() int64 {
	return h.requests.Load()
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// Route answers a routing lookup with three candidate paths: a direct pool,
// a two-hop route through a hub token, and a direct route on a second pool
// that is infeasible when the input amount is zero.
func (h *Handlers) Route(c echo.Context) error {
	n := h.requests.Add(1)
	if n <= h.failFirst {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "router warming up",
			Code:  http.StatusServiceUnavailable,
		})
	}

	q := c.QueryParams()
	from := q.Get(constants.ParamFromToken)
	to := q.Get(constants.ParamToToken)
	fromAddr := q.Get(constants.ParamFromTokenAddr)
	toAddr := q.Get(constants.ParamToTokenAddr)
	if from == "" || to == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "fromToken and toToken are required", Code: http.StatusBadRequest})
	}

	in, err := decimal.NewFromString(q.Get(constants.ParamInAmount))
	if err != nil || in.IsNegative() {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid inAmount", Code: http.StatusBadRequest})
	}

	direct := h.path(in, directFee, 1,
		[]string{poolName(from, to)},
		[]string{fromAddr, toAddr},
		[]string{from, to})

	viaHub := h.path(in, hubFee, 2,
		[]string{poolName(from, hubToken), poolName(hubToken, to)},
		[]string{fromAddr, hubAddr, toAddr},
		[]string{from, hubToken, to})

	slow := models.Path{
		Pool:        []string{poolName(from, to) + "-v1"},
		RoadForAddr: []string{fromAddr, toAddr},
		RoadForName: []string{from, to},
	}
	if !in.IsZero() {
		slow = h.path(in, slowFee, 1, slow.Pool, slow.RoadForAddr, slow.RoadForName)
	}

	return c.JSON(http.StatusOK, models.RouterResponse{
		Code:    0,
		Message: "SUCCESS",
		Data:    []models.Path{direct, viaHub, slow},
	})
}

func (h *Handlers) path(in, feeRate decimal.Decimal, hops int64, pool, addrs, names []string) models.Path {
	fee := in.Mul(feeRate).Mul(decimal.NewFromInt(hops))
	out := in.Sub(fee).Mul(h.skew).Truncate(0)
	impact := feeRate.Div(decimal.NewFromInt(10))

	return models.Path{
		Amount:      models.StrPtr(out.String()),
		Fee:         models.StrPtr(fee.Truncate(0).String()),
		Impact:      models.StrPtr(impact.String()),
		InUSD:       models.StrPtr(in.Shift(-6).StringFixed(2)),
		OutUSD:      models.StrPtr(out.Shift(-6).StringFixed(2)),
		Pool:        pool,
		RoadForAddr: addrs,
		RoadForName: names,
		Cast:        uint32(hops),
	}
}

func poolName(a, b string) string {
	return "pool-" + a + "-" + b
}
