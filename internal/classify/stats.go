package classify

import "github.com/vetta-research/dossier-cli/internal/model"

// FilterStats reduces a classified evidence set into the aggregate counts
// the adaptive-search decision and the disclaimer rules read.
func FilterStats(sources []model.EvidenceSource) model.FilterStats {
	stats := model.FilterStats{
		Total:      len(sources),
		ByStatus:   make(map[model.SourceStatus]int),
		ByCategory: make(map[model.SourceCategory]int),
		ByTrust:    make(map[model.TrustTier]int),
	}

	if len(sources) == 0 {
		return stats
	}

	sum := 0.0
	for _, s := range sources {
		stats.ByStatus[s.Status]++
		stats.ByCategory[s.Category]++
		stats.ByTrust[s.Trust]++
		sum += s.MatchScore
	}

	stats.MeanMatchScore = sum / float64(len(sources))
	stats.RejectedPercent = 100 * float64(stats.ByStatus[model.StatusRejected]) / float64(len(sources))
	return stats
}
