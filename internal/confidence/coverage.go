package confidence

import (
	"fmt"
	"time"

	"github.com/vetta-research/dossier-cli/internal/model"
)

// Coverage level thresholds.
const (
	coverageHighThreshold   = 0.8
	coverageMediumThreshold = 0.5
)

// coverageLimitations are inherent to any judicial-records lookup and are
// always attached for the disclaimer generator, regardless of score.
var coverageLimitations = []string{
	"court indexing may lag filings by days or weeks",
	"sealed and juvenile records are excluded from public search",
	"labor and small-claims courts index unevenly across regions",
	"records naming the subject as a non-party participant may be missed",
}

// EstimateCoverage scores whether the judicial lookup itself was
// trustworthy and thorough. A failed lookup is low/0 immediately.
func EstimateCoverage(result *model.JudicialResult) model.ConfidenceResult {
	if result.Failed() {
		return model.ConfidenceResult{
			Level:          model.ConfidenceLow,
			Score:          0,
			Justifications: []string{"judicial lookup failed"},
			Limitations:    coverageLimitations,
		}
	}

	score := 0.0
	var just []string

	// Resolution of an involved-party record. Zero records with a
	// successful lookup is absence-as-evidence, not failure.
	if result.InvolvedParty != "" && len(result.Records) > 0 {
		score += 0.3
		just = append(just, "involved party resolved from judicial records")
	} else {
		score += 0.2
		if len(result.Records) > 0 {
			just = append(just, "records found but the involved party was not resolved")
		} else {
			just = append(just, "lookup succeeded with no records found")
		}
	}

	// Per-record field completeness, proportional up to 0.4.
	if n := len(result.Records); n > 0 {
		complete := 0
		for _, r := range result.Records {
			if r.Complete() {
				complete++
			}
		}
		frac := float64(complete) / float64(n)
		score += 0.4 * frac
		just = append(just, fmt.Sprintf("%d of %d records carry all required fields", complete, n))
	}

	// Temporal span of the record set.
	switch span := result.Span(); {
	case span >= 5*365*24*time.Hour:
		score += 0.15
		just = append(just, "records span five or more years")
	case span >= 2*365*24*time.Hour:
		score += 0.1
		just = append(just, "records span at least two years")
	}

	// Geographic/court coverage.
	if len(result.Regions()) >= 2 || len(result.Courts()) >= 3 {
		score += 0.15
		just = append(just, "coverage across multiple regions or courts")
	} else {
		score += 0.1
		just = append(just, "coverage limited to a single region")
	}

	if score > 1.0 {
		score = 1.0
	}

	level := model.ConfidenceLow
	switch {
	case score >= coverageHighThreshold:
		level = model.ConfidenceHigh
	case score >= coverageMediumThreshold:
		level = model.ConfidenceMedium
	}

	return model.ConfidenceResult{
		Level:          level,
		Score:          score,
		Justifications: just,
		Limitations:    coverageLimitations,
	}
}
