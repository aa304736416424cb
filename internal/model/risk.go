package model

// RiskLevel buckets a 0-100 risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevelFor maps a score to its level bucket.
func RiskLevelFor(value int) RiskLevel {
	switch {
	case value >= 80:
		return RiskCritical
	case value >= 60:
		return RiskHigh
	case value >= 35:
		return RiskModerate
	default:
		return RiskLow
	}
}

// RiskScore is the generated risk score after the cap policy has been
// applied. The cap is a pure transform: applying it produces a new value,
// never an in-place mutation of shared state.
type RiskScore struct {
	Value         int       `json:"value"`
	Level         RiskLevel `json:"level"`
	Capped        bool      `json:"capped"`
	OriginalValue int       `json:"original_value,omitempty"`
	CapReasons    []string  `json:"cap_reasons,omitempty"`
}
