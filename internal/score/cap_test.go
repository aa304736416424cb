package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vetta-research/dossier-cli/internal/model"
)

func TestCap_BothLowStacks(t *testing.T) {
	result := Cap(85, model.ConfidenceLow, model.ConfidenceLow)

	assert.Equal(t, 35, result.Value)
	assert.True(t, result.Capped)
	assert.Equal(t, 85, result.OriginalValue)
	assert.Len(t, result.CapReasons, 2)
}

func TestCap_IdentityLowOnly(t *testing.T) {
	result := Cap(85, model.ConfidenceLow, model.ConfidenceHigh)
	assert.Equal(t, 40, result.Value)
	assert.True(t, result.Capped)
	assert.Len(t, result.CapReasons, 1)
}

func TestCap_IdentityMedium(t *testing.T) {
	result := Cap(85, model.ConfidenceMedium, model.ConfidenceLow)
	assert.Equal(t, 70, result.Value)
	assert.True(t, result.Capped)
}

func TestCap_HighConfidenceUncapped(t *testing.T) {
	result := Cap(85, model.ConfidenceHigh, model.ConfidenceHigh)
	assert.Equal(t, 85, result.Value)
	assert.False(t, result.Capped)
	assert.Empty(t, result.CapReasons)
	assert.Zero(t, result.OriginalValue)
}

func TestCap_BelowCeilingUntouched(t *testing.T) {
	result := Cap(20, model.ConfidenceLow, model.ConfidenceLow)
	assert.Equal(t, 20, result.Value)
	assert.False(t, result.Capped)
}

func TestCap_Idempotent(t *testing.T) {
	levels := []model.ConfidenceLevel{model.ConfidenceLow, model.ConfidenceMedium, model.ConfidenceHigh}
	for _, id := range levels {
		for _, jd := range levels {
			for _, raw := range []int{0, 20, 35, 36, 40, 41, 70, 71, 85, 100} {
				once := Cap(raw, id, jd)
				twice := Cap(once.Value, id, jd)
				assert.Equal(t, once.Value, twice.Value, "raw=%d id=%s jd=%s", raw, id, jd)
				assert.LessOrEqual(t, once.Value, raw, "never increases")
			}
		}
	}
}

func TestCap_ClampsOutOfRangeInput(t *testing.T) {
	assert.Equal(t, 100, Cap(140, model.ConfidenceHigh, model.ConfidenceHigh).Value)
	assert.Equal(t, 0, Cap(-5, model.ConfidenceHigh, model.ConfidenceHigh).Value)
}

func TestCap_LevelBuckets(t *testing.T) {
	assert.Equal(t, model.RiskModerate, Cap(85, model.ConfidenceLow, model.ConfidenceLow).Level)
	assert.Equal(t, model.RiskCritical, Cap(85, model.ConfidenceHigh, model.ConfidenceHigh).Level)
}
