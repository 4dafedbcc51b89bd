package constants

import "time"

// Log markers
const (
	SwapRoutingFlag = "request-swap-routingInV2"
	GrafanaInfoFlag = "--GRAFANA_INFO--"
	LogContentField = "logContent"
)

// Router query parameters
const (
	ParamFromToken     = "fromToken"
	ParamFromTokenAddr = "fromTokenAddr"
	ParamToToken       = "toToken"
	ParamToTokenAddr   = "toTokenAddr"
	ParamInAmount      = "inAmount"
	ParamFromDecimal   = "fromDecimal"
	ParamToDecimal     = "toDecimal"
	ParamUseBaseTokens = "useBaseTokens"
)

// Retry defaults for one logical router call
const (
	RetryInitialInterval = 1 * time.Second
	RetryMultiplier      = 1.5
	RetryMaxInterval     = 2 * time.Minute
	RetryMaxElapsed      = 2 * time.Minute
)

// HTTP
const (
	DefaultRequestTimeout = 15 * time.Second
	RouterPath            = "/routingInV2"
)

// Comparison
const (
	// DivergenceThreshold is the amount difference above which a matched
	// pair gets a detail record.
	DivergenceThreshold = 0.01
)

// Redis keys and channels
const (
	RedisKeySeenPrefix       = "routediff:seen:"
	RedisSeenTTL             = 24 * time.Hour
	PubSubChannelDivergences = "routediff:divergences"
)

// ClickHouse
const (
	DivergenceTable = "route_divergences"
)
