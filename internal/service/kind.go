package service

import (
	"fmt"

	"water-monitoring/internal/apperr"
)

// Kind names a measurement family; it doubles as the URL segment and export tag
type Kind string

const (
	KindWaterLevel Kind = "water-level"
	KindRainfall   Kind = "rainfall"
)

// ParseKind validates a kind taken from a request path
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(raw); k {
	case KindWaterLevel, KindRainfall:
		return k, nil
	}
	return "", apperr.NewValidationError(fmt.Sprintf("unknown report kind %q, expected water-level or rainfall", raw), nil)
}
