package model

import "time"

// JudicialRecord is one case record returned by the judicial-records
// provider. Required fields for completeness scoring: case number,
// category, subject, start date.
type JudicialRecord struct {
	CaseNumber string    `json:"case_number"`
	Category   string    `json:"category"`
	Subject    string    `json:"subject"`
	Court      string    `json:"court"`
	Region     string    `json:"region"`
	Role       string    `json:"role"`
	MainAction string    `json:"main_action,omitempty"`
	StartDate  time.Time `json:"start_date"`
}

// Complete reports whether the record carries every required field.
func (r JudicialRecord) Complete() bool {
	return r.CaseNumber != "" && r.Category != "" && r.Subject != "" && !r.StartDate.IsZero()
}

// JudicialResult is the outcome of one judicial lookup. A failed lookup
// has Err set and is scored low/0 by the coverage estimator; zero records
// with a nil Err is absence-as-evidence, not failure.
type JudicialResult struct {
	InvolvedParty string           `json:"involved_party,omitempty"`
	Records       []JudicialRecord `json:"records"`
	TotalCount    int              `json:"total_count"`
	Err           string           `json:"error,omitempty"`
}

// Failed reports whether the lookup itself failed.
func (j *JudicialResult) Failed() bool {
	return j == nil || j.Err != ""
}

// Regions returns the distinct region codes across records.
func (j *JudicialResult) Regions() []string {
	if j == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range j.Records {
		if r.Region != "" && !seen[r.Region] {
			seen[r.Region] = true
			out = append(out, r.Region)
		}
	}
	return out
}

// Courts returns the distinct court identifiers across records.
func (j *JudicialResult) Courts() []string {
	if j == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range j.Records {
		if r.Court != "" && !seen[r.Court] {
			seen[r.Court] = true
			out = append(out, r.Court)
		}
	}
	return out
}

// Span returns the time between the earliest and latest record start dates.
func (j *JudicialResult) Span() time.Duration {
	if j == nil || len(j.Records) == 0 {
		return 0
	}
	var earliest, latest time.Time
	for _, r := range j.Records {
		if r.StartDate.IsZero() {
			continue
		}
		if earliest.IsZero() || r.StartDate.Before(earliest) {
			earliest = r.StartDate
		}
		if latest.IsZero() || r.StartDate.After(latest) {
			latest = r.StartDate
		}
	}
	if earliest.IsZero() {
		return 0
	}
	return latest.Sub(earliest)
}
