package model

// SourceCategory is the single category assigned to an evidence source.
// Categories are matched in a fixed priority order; the first match wins.
type SourceCategory string

const (
	CategoryJudicial            SourceCategory = "judicial"
	CategoryGovernment          SourceCategory = "government"
	CategoryProfessionalNetwork SourceCategory = "professional_network"
	CategoryAcademic            SourceCategory = "academic"
	CategoryLargeMedia          SourceCategory = "large_media"
	CategoryGeneralMedia        SourceCategory = "general_media"
	CategorySocialNetwork       SourceCategory = "social_network"
	CategoryBusinessRegistry    SourceCategory = "business_registry"
	CategoryOther               SourceCategory = "other"
)

// TrustTier is the five-point source trust scale.
type TrustTier string

const (
	TrustVeryHigh TrustTier = "very_high"
	TrustHigh     TrustTier = "high"
	TrustMedium   TrustTier = "medium"
	TrustLow      TrustTier = "low"
	TrustVeryLow  TrustTier = "very_low"
)

// Weight returns the fixed numeric weight for a trust tier.
func (t TrustTier) Weight() float64 {
	switch t {
	case TrustVeryHigh:
		return 1.0
	case TrustHigh:
		return 0.8
	case TrustMedium:
		return 0.5
	case TrustLow:
		return 0.3
	default:
		return 0.1
	}
}

// SourceStatus is the three-way disposition of an evidence source.
type SourceStatus string

const (
	StatusAccepted   SourceStatus = "accepted"
	StatusWeakSignal SourceStatus = "weak_signal"
	StatusRejected   SourceStatus = "rejected"
)

// EvidenceSource is one classified web search result. Immutable after
// classification except for FetchedText, which the bounded fetch step may
// attach later.
type EvidenceSource struct {
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Snippet     string         `json:"snippet"`
	FetchedText string         `json:"fetched_text,omitempty"`
	Category    SourceCategory `json:"category"`
	Trust       TrustTier      `json:"trust"`
	MatchScore  float64        `json:"match_score"`
	Status      SourceStatus   `json:"status"`
	Weight      float64        `json:"weight"`
	Reasons     []string       `json:"reasons,omitempty"`
}

// FilterStats is a pure reduction over a classified evidence set. Drives
// the adaptive-search decision and the quality-filter disclaimer.
type FilterStats struct {
	Total           int                    `json:"total"`
	ByStatus        map[SourceStatus]int   `json:"by_status"`
	ByCategory      map[SourceCategory]int `json:"by_category"`
	ByTrust         map[TrustTier]int      `json:"by_trust"`
	MeanMatchScore  float64                `json:"mean_match_score"`
	RejectedPercent float64                `json:"rejected_percent"`
}
