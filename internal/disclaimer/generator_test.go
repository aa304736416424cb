package disclaimer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vetta-research/dossier-cli/internal/model"
)

func TestGenerate_LatencyAlwaysFirst(t *testing.T) {
	out := Generate(Input{
		Identity: model.ConfidenceResult{Level: model.ConfidenceHigh},
		Judicial: model.ConfidenceResult{Level: model.ConfidenceHigh},
		RecordCount: 2,
	})

	assert.NotEmpty(t, out)
	assert.Equal(t, "Judicial indexing latency", out[0].Title)
	assert.Contains(t, out[0].Text, "30 days")
}

func TestGenerate_AllConditionalRulesInOrder(t *testing.T) {
	out := Generate(Input{
		Identity:    model.ConfidenceResult{Level: model.ConfidenceLow},
		Judicial:    model.ConfidenceResult{Level: model.ConfidenceLow},
		Stats:       model.FilterStats{RejectedPercent: 60},
		Risk:        model.RiskScore{Value: 35, OriginalValue: 85, Capped: true},
		RecordCount: 0,
	})

	titles := make([]string, len(out))
	for i, d := range out {
		titles[i] = d.Title
	}
	assert.Equal(t, []string{
		"Judicial indexing latency",
		"Possible homonym",
		"No judicial records found",
		"Quality filter",
		"Risk score capped",
	}, titles)
}

func TestGenerate_HomonymIsCritical(t *testing.T) {
	out := Generate(Input{
		Identity:    model.ConfidenceResult{Level: model.ConfidenceLow},
		RecordCount: 1,
	})

	assert.Equal(t, "Possible homonym", out[1].Title)
	assert.True(t, out[1].Critical)
}

func TestGenerate_CapDisclosureShowsBothScores(t *testing.T) {
	out := Generate(Input{
		Identity:    model.ConfidenceResult{Level: model.ConfidenceHigh},
		Risk:        model.RiskScore{Value: 40, OriginalValue: 85, Capped: true},
		RecordCount: 1,
	})

	last := out[len(out)-1]
	assert.Equal(t, "Risk score capped", last.Title)
	assert.Contains(t, last.Text, "85")
	assert.Contains(t, last.Text, "40")
}

func TestGenerate_QuietOnGoodRun(t *testing.T) {
	out := Generate(Input{
		Identity:    model.ConfidenceResult{Level: model.ConfidenceHigh},
		Judicial:    model.ConfidenceResult{Level: model.ConfidenceHigh},
		Stats:       model.FilterStats{RejectedPercent: 20},
		Risk:        model.RiskScore{Value: 55},
		RecordCount: 3,
	})

	assert.Len(t, out, 1)
}

func TestGenerate_AppendsCoverageLimitations(t *testing.T) {
	out := Generate(Input{
		Identity:    model.ConfidenceResult{Level: model.ConfidenceHigh},
		Judicial:    model.ConfidenceResult{Limitations: []string{"sealed records excluded"}},
		RecordCount: 1,
	})

	last := out[len(out)-1]
	assert.Equal(t, "Inherent limitation", last.Title)
	assert.Equal(t, "sealed records excluded", last.Text)
}
