package threshold

import (
	"math"
	"strconv"
	"strings"
)

// LowBuffer is the fixed band above the minimum that is reported as "low",
// independent of the station's unit scale.
const LowBuffer = 1.0

// Status is the qualitative classification of a water level reading.
type Status string

const (
	StatusNone     Status = ""
	StatusCritical Status = "critical"
	StatusLow      Status = "low"
	StatusNormal   Status = "normal"
	StatusHigh     Status = "high"
)

// Thresholds holds the safe operating range of a monitoring station.
type Thresholds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Evaluate classifies a reading against the station thresholds.
func Evaluate(level float64, t Thresholds) Status {
	switch {
	case level < t.Min:
		return StatusCritical
	case level > t.Max:
		return StatusHigh
	case level < t.Min+LowBuffer:
		return StatusLow
	default:
		return StatusNormal
	}
}

// EvaluateInput classifies raw form input. Empty, non-numeric and
// non-finite input yields StatusNone rather than an error.
func EvaluateInput(raw string, t Thresholds) Status {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StatusNone
	}
	level, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(level) || math.IsInf(level, 0) {
		return StatusNone
	}
	return Evaluate(level, t)
}

// Message returns the operator-facing description of the status.
func (s Status) Message() string {
	switch s {
	case StatusCritical:
		return "Below critical minimum level"
	case StatusHigh:
		return "Above maximum safe level"
	case StatusLow:
		return "Approaching minimum threshold"
	case StatusNormal:
		return "Within normal range"
	default:
		return ""
	}
}

// Alerting reports whether the status should raise an operator alert.
func (s Status) Alerting() bool {
	return s == StatusCritical || s == StatusHigh
}
