package logparse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/routediff/internal/constants"
	"github.com/aman-zulfiqar/routediff/internal/models"
)

// LogParseError means a single swap-routing line could not be turned into a
// request. The line is skipped; the run continues.
type LogParseError struct {
	Reason string
	Err    error
}

func (e *LogParseError) Error() string {
	if e.Err == nil {
		return "log parse error: " + e.Reason
	}
	return fmt.Sprintf("log parse error: %s: %v", e.Reason, e.Err)
}

func (e *LogParseError) Unwrap() error {
	return e.Err
}

func parseErr(reason string, err error) error {
	return &LogParseError{Reason: reason, Err: err}
}

// IsSwapRouting reports whether the line is a swap-routing request log.
// Other lines are not errors, callers just skip them.
func IsSwapRouting(line string) bool {
	return strings.Contains(line, constants.SwapRoutingFlag)
}

// Extract decodes the request embedded in a swap-routing log line. The text
// after the grafana marker is a JSON envelope whose logContent field holds
// the request as a JSON-encoded string.
func Extract(line string) (*models.SwapRequest, error) {
	_, payload, found := strings.Cut(line, constants.GrafanaInfoFlag)
	if !found {
		return nil, parseErr("missing "+constants.GrafanaInfoFlag+" marker", nil)
	}

	var envelope map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(payload)))
	if err := dec.Decode(&envelope); err != nil {
		return nil, parseErr("envelope is not a JSON object", err)
	}
	if envelope == nil {
		return nil, parseErr("envelope is not a JSON object", nil)
	}

	raw, ok := envelope[constants.LogContentField]
	if !ok {
		return nil, parseErr("missing "+constants.LogContentField+" field", nil)
	}

	var content string
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, parseErr(constants.LogContentField+" is not a string", err)
	}

	var req models.SwapRequest
	if err := json.Unmarshal([]byte(content), &req); err != nil {
		return nil, parseErr("invalid "+constants.LogContentField+" payload", err)
	}
	if err := Validate(&req); err != nil {
		return nil, parseErr("invalid swap request", err)
	}
	return &req, nil
}

// Validate checks that a request is complete enough to replay.
func Validate(req *models.SwapRequest) error {
	if strings.TrimSpace(req.FromToken) == "" {
		return fmt.Errorf("fromToken is required")
	}
	if strings.TrimSpace(req.ToToken) == "" {
		return fmt.Errorf("toToken is required")
	}
	if err := validateAddress(req.FromTokenAddr); err != nil {
		return fmt.Errorf("fromTokenAddr: %w", err)
	}
	if err := validateAddress(req.ToTokenAddr); err != nil {
		return fmt.Errorf("toTokenAddr: %w", err)
	}

	amt, err := decimal.NewFromString(req.InAmount)
	if err != nil {
		return fmt.Errorf("inAmount: %w", err)
	}
	if amt.IsNegative() {
		return fmt.Errorf("inAmount must not be negative")
	}
	return nil
}

func validateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address is required")
	}
	if _, err := base58.Decode(addr); err != nil {
		return fmt.Errorf("not base58: %w", err)
	}
	return nil
}
