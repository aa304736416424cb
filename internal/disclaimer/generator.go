// Package disclaimer produces the ordered list of caveats attached to
// every report. Rules run in a fixed order; each either always fires or
// fires on a condition over the confidence results, filter statistics, and
// capped score.
package disclaimer

import (
	"fmt"

	"github.com/vetta-research/dossier-cli/internal/model"
)

// Input is everything the rule list reads.
type Input struct {
	Identity     model.ConfidenceResult
	Judicial     model.ConfidenceResult
	Stats        model.FilterStats
	Risk         model.RiskScore
	RecordCount  int
	IndexLagDays int
}

// rule is one entry of the ordered rule list.
type rule struct {
	applies func(Input) bool
	build   func(Input) model.Disclaimer
}

// rules run in declaration order; the output order is part of the
// contract.
var rules = []rule{
	{
		// Always fires.
		applies: func(Input) bool { return true },
		build: func(in Input) model.Disclaimer {
			days := in.IndexLagDays
			if days <= 0 {
				days = 30
			}
			return model.Disclaimer{
				Title: "Judicial indexing latency",
				Text:  fmt.Sprintf("Judicial data may lag court filings by up to %d days.", days),
			}
		},
	},
	{
		applies: func(in Input) bool { return in.Identity.Level == model.ConfidenceLow },
		build: func(in Input) model.Disclaimer {
			return model.Disclaimer{
				Title:    "Possible homonym",
				Text:     "Identity confidence is low: the collected records may refer to a different person or organization with the same name.",
				Critical: true,
			}
		},
	},
	{
		applies: func(in Input) bool { return in.RecordCount == 0 },
		build: func(in Input) model.Disclaimer {
			return model.Disclaimer{
				Title: "No judicial records found",
				Text:  "The absence of records is not proof of a clean history: sealed, juvenile, and recently filed cases are not publicly indexed.",
			}
		},
	},
	{
		applies: func(in Input) bool { return in.Stats.RejectedPercent > 50 },
		build: func(in Input) model.Disclaimer {
			return model.Disclaimer{
				Title: "Quality filter",
				Text:  fmt.Sprintf("%.0f%% of collected web sources were rejected as low quality or unrelated; the remaining evidence base is thin.", in.Stats.RejectedPercent),
			}
		},
	},
	{
		applies: func(in Input) bool { return in.Risk.Capped },
		build: func(in Input) model.Disclaimer {
			return model.Disclaimer{
				Title: "Risk score capped",
				Text:  fmt.Sprintf("The generated risk score of %d was capped to %d because the confidence earned by the evidence does not support it.", in.Risk.OriginalValue, in.Risk.Value),
			}
		},
	},
}

// Generate evaluates the rule list in order and appends the coverage
// estimator's inherent limitations at the end.
func Generate(in Input) []model.Disclaimer {
	var out []model.Disclaimer
	for _, r := range rules {
		if r.applies(in) {
			out = append(out, r.build(in))
		}
	}
	for _, lim := range in.Judicial.Limitations {
		out = append(out, model.Disclaimer{
			Title: "Inherent limitation",
			Text:  lim,
		})
	}
	return out
}
