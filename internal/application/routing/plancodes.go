// Plan-code translation between the two providers.
//
// Monnify product codes look like "MTN-DATA-1GB-30D"; Peyflex plan codes
// look like "mtn-1gb-monthly". The static map covers the catalog both
// providers actually sell; the pattern fallback composes a target code from
// the size and duration embedded in an unknown code. Unresolvable codes
// fail fast rather than vend the wrong plan.
package routing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/errors"
)

// peyflexToMonnify maps Peyflex plan codes to Monnify product codes.
// The reverse map is derived in init.
var peyflexToMonnify = map[string]string{
	"mtn-500mb-weekly":      "MTN-DATA-500MB-7D",
	"mtn-1gb-monthly":       "MTN-DATA-1GB-30D",
	"mtn-2gb-monthly":       "MTN-DATA-2GB-30D",
	"mtn-5gb-monthly":       "MTN-DATA-5GB-30D",
	"airtel-750mb-weekly":   "AIRTEL-DATA-750MB-7D",
	"airtel-1gb-monthly":    "AIRTEL-DATA-1GB-30D",
	"airtel-4gb-monthly":    "AIRTEL-DATA-4GB-30D",
	"glo-1gb-monthly":       "GLO-DATA-1GB-30D",
	"glo-2gb-monthly":       "GLO-DATA-2GB-30D",
	"9mobile-1gb-monthly":   "9MOBILE-DATA-1GB-30D",
	"9mobile-500mb-weekly":  "9MOBILE-DATA-500MB-7D",
}

var monnifyToPeyflex = make(map[string]string, len(peyflexToMonnify))

func init() {
	for p, m := range peyflexToMonnify {
		monnifyToPeyflex[m] = p
	}
}

var (
	sizePattern     = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(GB|MB)`)
	durationPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:D\b|DAYS?\b)|(?i)\b(DAILY|WEEKLY|MONTHLY|WEEK|MONTH|DAY)\b`)
)

// planShape is the normalized size/duration extracted from a code.
type planShape struct {
	sizeValue string // e.g. "1", "500"
	sizeUnit  string // "GB" or "MB"
	days      int
}

// extractShape parses size and duration keywords out of an arbitrary plan
// code or product name.
func extractShape(code string) (planShape, bool) {
	m := sizePattern.FindStringSubmatch(code)
	if m == nil {
		return planShape{}, false
	}
	shape := planShape{sizeValue: m[1], sizeUnit: strings.ToUpper(m[2])}

	d := durationPattern.FindStringSubmatch(code)
	switch {
	case d == nil:
		shape.days = 30 // monthly is the dominant family
	case d[1] != "":
		fmt.Sscanf(d[1], "%d", &shape.days)
	default:
		switch strings.ToUpper(d[2]) {
		case "DAILY", "DAY":
			shape.days = 1
		case "WEEKLY", "WEEK":
			shape.days = 7
		default:
			shape.days = 30
		}
	}
	if shape.days <= 0 {
		shape.days = 30
	}
	return shape, true
}

func durationLabel(days int) string {
	switch {
	case days <= 1:
		return "daily"
	case days <= 7:
		return "weekly"
	default:
		return "monthly"
	}
}

// composeMonnifyCode builds the Monnify product-code shape.
func composeMonnifyCode(network string, s planShape) string {
	return fmt.Sprintf("%s-DATA-%s%s-%dD", strings.ToUpper(network), s.sizeValue, s.sizeUnit, s.days)
}

// composePeyflexCode builds the Peyflex plan-code shape.
func composePeyflexCode(network string, s planShape) string {
	return fmt.Sprintf("%s-%s%s-%s",
		strings.ToLower(network),
		strings.ToLower(s.sizeValue), strings.ToLower(s.sizeUnit),
		durationLabel(s.days))
}

// TranslatePlanCode converts a plan code between providers. The static map
// wins; otherwise the pattern fallback composes the target shape. A code
// with no recognizable size fails with ErrUnmappablePlan.
func TranslatePlanCode(code, network string, from, to entities.Provider) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errors.ErrUnmappablePlan
	}
	if from == to {
		return code, nil
	}

	switch {
	case from == entities.ProviderPeyflex && to == entities.ProviderMonnify:
		if mapped, ok := peyflexToMonnify[strings.ToLower(code)]; ok {
			return mapped, nil
		}
	case from == entities.ProviderMonnify && to == entities.ProviderPeyflex:
		if mapped, ok := monnifyToPeyflex[strings.ToUpper(code)]; ok {
			return mapped, nil
		}
	default:
		return "", fmt.Errorf("%w: %s -> %s", errors.ErrUnmappablePlan, from, to)
	}

	shape, ok := extractShape(code)
	if !ok {
		return "", fmt.Errorf("%w: %q", errors.ErrUnmappablePlan, code)
	}
	if to == entities.ProviderMonnify {
		return composeMonnifyCode(network, shape), nil
	}
	return composePeyflexCode(network, shape), nil
}

// SharesShapeKeyword reports whether two product names/codes agree on at
// least one size or duration keyword. Used by the delivered-product
// validator.
func SharesShapeKeyword(requested, delivered string) bool {
	reqShape, okA := extractShape(requested)
	delShape, okB := extractShape(delivered)
	if !okA || !okB {
		// Without both shapes, fall back to a case-insensitive token match.
		return strings.Contains(strings.ToLower(delivered), strings.ToLower(strings.TrimSpace(requested)))
	}
	sizeMatch := reqShape.sizeValue == delShape.sizeValue && reqShape.sizeUnit == delShape.sizeUnit
	durationMatch := durationLabel(reqShape.days) == durationLabel(delShape.days)
	return sizeMatch || durationMatch
}
