// Package amount normalizes the heterogeneous amount representations the
// two payment providers (and older internal rows) report: some fields are
// integer minor units, some are major-unit decimals, some carry an explicit
// scale. Everything here is pure and deterministic; callers must treat a
// failed derivation as "no monetary fact available", never as zero.
package amount

import (
	"math"
	"strconv"
	"strings"
)

// MinorUnitThreshold is the magnitude at or above which an unhinted raw
// value is assumed to be minor units and divided by 100. Mid-range values
// are ambiguous by construction; the Derivation records which rule fired so
// the guess is auditable downstream.
const MinorUnitThreshold = 10000

// Field names tried in priority order: explicit totals first, then paid
// amounts, then generic amounts.
var fieldPriority = []string{
	"total", "grand_total", "total_amount",
	"paid_amount", "amount_paid",
	"amount", "price",
}

// Field names that by convention carry minor units regardless of magnitude.
var minorUnitFields = map[string]bool{
	"total_amount": true,
	"amount_cents": true,
	"amount_minor": true,
	"grand_total":  true,
}

// Rule names recorded in a Derivation.
const (
	RuleExplicitScale = "explicit_scale"
	RuleMinorField    = "minor_unit_field"
	RuleMagnitude     = "magnitude_threshold"
	RuleAsIs          = "as_is"
)

// Hints carries out-of-band knowledge about the payload's conventions.
type Hints struct {
	// Scale divides the raw value when > 0 (e.g. 100 for cents). Wins over
	// every heuristic.
	Scale float64
}

// Derivation explains how a canonical amount was produced. It exists so
// heuristic guesses stay visible in the audit trail instead of silently
// shaping ledger aggregates.
type Derivation struct {
	Field string
	Raw   float64
	Rule  string
}

// Normalize walks the payload fields in priority order and converts the
// first finite, non-zero candidate into a major-unit value rounded to two
// decimals. ok is false when nothing derivable was found.
func Normalize(payload map[string]any, hints Hints) (major float64, d Derivation, ok bool) {
	for _, field := range fieldPriority {
		raw, found := numeric(payload[field])
		if !found || raw == 0 || math.IsInf(raw, 0) || math.IsNaN(raw) {
			continue
		}
		return derive(field, raw, hints)
	}
	return 0, Derivation{}, false
}

// NormalizeValue applies the same rules to a single already-extracted value.
func NormalizeValue(field string, raw float64, hints Hints) (float64, Derivation, bool) {
	if raw == 0 || math.IsInf(raw, 0) || math.IsNaN(raw) {
		return 0, Derivation{}, false
	}
	return derive(field, raw, hints)
}

func derive(field string, raw float64, hints Hints) (float64, Derivation, bool) {
	d := Derivation{Field: field, Raw: raw}
	switch {
	case hints.Scale > 0:
		d.Rule = RuleExplicitScale
		return round2(raw / hints.Scale), d, true
	case minorUnitFields[field]:
		d.Rule = RuleMinorField
		return round2(raw / 100), d, true
	case math.Abs(raw) >= MinorUnitThreshold:
		d.Rule = RuleMagnitude
		return round2(raw / 100), d, true
	default:
		d.Rule = RuleAsIs
		return round2(raw), d, true
	}
}

// MajorToMinor converts a major-unit value to integer minor units.
func MajorToMinor(major float64) int64 {
	return int64(math.Round(major * 100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// numeric coerces the JSON-decoded shapes the providers actually send:
// float64 from JSON numbers, and numeric strings from form posts and the
// hosted provider's webhook ("24000", "42.50").
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
