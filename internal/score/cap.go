// Package score applies the confidence-driven ceiling to a generated risk
// score, so the report never states more certainty than the evidence
// earned.
package score

import (
	"github.com/vetta-research/dossier-cli/internal/model"
)

// Ceilings by confidence level. The identity-low + judicial-low rule
// stacks on top of the identity-low ceiling rather than replacing it.
const (
	ceilingIdentityLow    = 40
	ceilingIdentityMedium = 70
	ceilingBothLow        = 35
)

// Cap clamps rawScore by the minimum ceiling implied by the two confidence
// levels. Pure and idempotent: capping an already-capped value with the
// same levels returns the same value.
func Cap(rawScore int, identity, judicial model.ConfidenceLevel) model.RiskScore {
	if rawScore < 0 {
		rawScore = 0
	}
	if rawScore > 100 {
		rawScore = 100
	}

	ceiling := 100
	var reasons []string

	if identity == model.ConfidenceLow {
		ceiling = ceilingIdentityLow
		reasons = append(reasons, "identity confidence is low: score capped at 40")
	} else if identity == model.ConfidenceMedium {
		ceiling = ceilingIdentityMedium
		reasons = append(reasons, "identity confidence is medium: score capped at 70")
	}

	if identity == model.ConfidenceLow && judicial == model.ConfidenceLow {
		if ceilingBothLow < ceiling {
			ceiling = ceilingBothLow
		}
		reasons = append(reasons, "identity and judicial confidence are both low: score capped at 35")
	}

	capped := rawScore
	if capped > ceiling {
		capped = ceiling
	}

	result := model.RiskScore{
		Value: capped,
		Level: model.RiskLevelFor(capped),
	}
	if capped < rawScore {
		result.Capped = true
		result.OriginalValue = rawScore
		result.CapReasons = reasons
	}
	return result
}
