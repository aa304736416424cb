package model

// ConfidenceLevel is the qualitative trust level of a confidence estimate.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ConfidenceResult is the output of a confidence estimator. Computed once
// per run and read-only afterward. Justifications are carried into the
// report's disclaimers.
type ConfidenceResult struct {
	Level          ConfidenceLevel `json:"level"`
	Score          float64         `json:"score"`
	Justifications []string        `json:"justifications,omitempty"`
	Limitations    []string        `json:"limitations,omitempty"`
}
