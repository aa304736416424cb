// Package confidence implements the two fixed-policy scoring models of a
// dossier run: identity confidence (are all collected records about the
// same real-world entity?) and record-coverage confidence (was the
// judicial lookup itself thorough?). The weights are business policy, not
// tuned parameters.
package confidence

import (
	"fmt"
	"strings"

	"github.com/vetta-research/dossier-cli/internal/model"
)

// IdentityInput collects everything the identity estimator weighs.
type IdentityInput struct {
	QueryType     model.QueryType
	QueryName     string
	RecordName    string
	RecordRegions []string
	WebResults    []model.EvidenceSource
	RecordCount   int
}

// Identity level thresholds.
const (
	identityHighThreshold   = 0.75
	identityMediumThreshold = 0.45
)

// EstimateIdentity runs the weighted identity scoring model. Every rule
// that contributes appends a human-readable justification; these are
// carried into the report's disclaimers.
func EstimateIdentity(in IdentityInput) model.ConfidenceResult {
	score := 0.0
	var just []string

	// Query type: a document lookup anchors identity; a bare name is an
	// explicit homonym risk.
	if in.QueryType == model.QueryTypeDocument {
		score += 0.4
		just = append(just, "query anchored by a document number")
	} else {
		score += 0.1
		just = append(just, "name-only query carries homonym risk")
	}

	// Name agreement between the query and the name resolved from
	// judicial records.
	queryName := model.NormalizeForComparison(in.QueryName)
	recordName := model.NormalizeForComparison(in.RecordName)
	switch {
	case queryName != "" && queryName == recordName:
		score += 0.25
		just = append(just, "judicial record name matches the query exactly")
	case recordName != "" && partialNameMatch(queryName, recordName):
		score += 0.15
		just = append(just, "judicial record name partially matches the query")
	case recordName != "" && in.RecordCount > 0:
		score += 0.05
		just = append(just, "judicial records exist under a related name")
	}

	// Regional consistency across judicial records.
	if in.RecordCount > 0 {
		dominant := dominantRegionShare(in.RecordRegions)
		switch {
		case dominant >= 0.8:
			score += 0.2
			just = append(just, fmt.Sprintf("records concentrated in one region (%.0f%%)", dominant*100))
		case dominant >= 0.5:
			score += 0.1
			just = append(just, "records lean toward one region")
		default:
			score += 0.05
			just = append(just, "records scattered across regions")
		}
	}

	// Social/professional anchors in the accepted web evidence, up to 0.15.
	anchors := 0.0
	for _, src := range in.WebResults {
		if src.Status == model.StatusRejected {
			continue
		}
		if src.Category == model.CategoryProfessionalNetwork && src.MatchScore >= 0.2 {
			anchors += 0.1
		} else if src.MatchScore >= 0.5 {
			anchors += 0.05
		}
	}
	if anchors > 0.15 {
		anchors = 0.15
	}
	if anchors > 0 {
		score += anchors
		just = append(just, "web evidence provides social/professional anchors")
	}

	if score > 1.0 {
		score = 1.0
	}

	return model.ConfidenceResult{
		Level:          identityLevel(score),
		Score:          score,
		Justifications: just,
	}
}

func identityLevel(score float64) model.ConfidenceLevel {
	switch {
	case score >= identityHighThreshold:
		return model.ConfidenceHigh
	case score >= identityMediumThreshold:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// partialNameMatch reports whether either normalized name contains the
// other, or they share first and last tokens.
func partialNameMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	ap, bp := model.NameParts(a), model.NameParts(b)
	if len(ap) < 2 || len(bp) < 2 {
		return false
	}
	return ap[0] == bp[0] && ap[len(ap)-1] == bp[len(bp)-1]
}

// dominantRegionShare returns the share of the most frequent region.
func dominantRegionShare(regions []string) float64 {
	if len(regions) == 0 {
		return 0
	}
	counts := make(map[string]int)
	for _, r := range regions {
		counts[strings.ToUpper(strings.TrimSpace(r))]++
	}
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return float64(max) / float64(len(regions))
}
