package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vetta-research/dossier-cli/internal/model"
)

var profile = BaseProfile{
	NormalizedName: "joao da silva",
	Regions:        []string{"RS"},
	Cities:         []string{"Porto Alegre"},
	Organizations:  []string{"Acme Consultoria"},
}

func TestClassify_JudicialAlwaysAccepted(t *testing.T) {
	src := Classify(model.EvidenceSource{
		URL:   "https://www.tjrs.jus.br/consulta/processo/123",
		Title: "Consulta processual",
	}, profile)

	assert.Equal(t, model.CategoryJudicial, src.Category)
	assert.Equal(t, model.TrustVeryHigh, src.Trust)
	assert.Equal(t, model.StatusAccepted, src.Status)
	// Accepted regardless of a zero identity-match score.
	assert.Equal(t, 0.0, src.MatchScore)
}

func TestClassify_CourtHostWithoutJusSuffix(t *testing.T) {
	src := Classify(model.EvidenceSource{URL: "https://tjsp.exemplo.br/processos"}, profile)
	assert.Equal(t, model.CategoryJudicial, src.Category)
	assert.Equal(t, model.StatusAccepted, src.Status)
}

func TestClassify_GovernmentAccepted(t *testing.T) {
	src := Classify(model.EvidenceSource{URL: "https://portal.fazenda.gov.br/pessoa"}, profile)
	assert.Equal(t, model.CategoryGovernment, src.Category)
	assert.Equal(t, model.StatusAccepted, src.Status)
}

func TestClassify_BlocklistedRejectedWithZeroWeight(t *testing.T) {
	cases := []model.EvidenceSource{
		{URL: "https://www.scribd.com/document/123/lista"},
		{URL: "https://site.com.br/uploads/relatorio.pdf"},
		{URL: "https://qualquer.com", Title: "Quem é do número (51) 9999"},
	}
	for _, raw := range cases {
		src := Classify(raw, profile)
		assert.Equal(t, model.StatusRejected, src.Status, "url %s", raw.URL)
		assert.Equal(t, 0.0, src.Weight, "url %s", raw.URL)
		assert.NotEmpty(t, src.Reasons, "url %s", raw.URL)
	}
}

func TestClassify_ProfessionalNetworkLowBar(t *testing.T) {
	src := Classify(model.EvidenceSource{
		URL:     "https://www.linkedin.com/in/joao-silva",
		Title:   "João da Silva - Analista",
		Snippet: "Profissional em Porto Alegre",
	}, profile)

	assert.Equal(t, model.CategoryProfessionalNetwork, src.Category)
	assert.Equal(t, model.StatusAccepted, src.Status)
	assert.GreaterOrEqual(t, src.MatchScore, 0.2)
}

func TestClassify_SocialNetworkRecordsPlatform(t *testing.T) {
	src := Classify(model.EvidenceSource{
		URL:     "https://www.instagram.com/joaodasilva",
		Title:   "João da Silva (@joaodasilva)",
		Snippet: "Porto Alegre, RS",
	}, profile)

	assert.Equal(t, model.CategorySocialNetwork, src.Category)
	assert.Equal(t, model.TrustLow, src.Trust)
	assert.Contains(t, src.Reasons, "social platform: instagram.com")

	src = Classify(model.EvidenceSource{URL: "https://www.tiktok.com/@alguem"}, profile)
	assert.Contains(t, src.Reasons, "social platform: tiktok.com")
}

func TestClassify_MatchScoreComposition(t *testing.T) {
	src := Classify(model.EvidenceSource{
		URL:     "https://www.linkedin.com/in/x",
		Title:   "João da Silva",
		Snippet: "Acme Consultoria, Porto Alegre - RS",
	}, profile)

	// 0.4 name + 0.3 region + 0.2 city + 0.1 org = 1.0 (capped).
	assert.InDelta(t, 1.0, src.MatchScore, 0.001)
}

func TestClassify_PartialNameScoresLower(t *testing.T) {
	src := Classify(model.EvidenceSource{
		URL:     "https://www.linkedin.com/in/x",
		Title:   "Silva, João",
		Snippet: "",
	}, profile)

	// First+last present but not the full normalized string.
	assert.InDelta(t, 0.2, src.MatchScore, 0.001)
}

func TestClassify_WeakSignalBand(t *testing.T) {
	// General media (low trust), name partial only: match 0.2+0.2(city)=0.4
	// lands in the weak-signal band [0.3, 0.5).
	src := Classify(model.EvidenceSource{
		URL:     "https://jornalregional.com.br/materia",
		Title:   "Silva recebe homenagem",
		Snippet: "evento com joao em porto alegre",
	}, profile)

	assert.Equal(t, model.StatusWeakSignal, src.Status)
}

func TestClassify_NoMatchRejected(t *testing.T) {
	src := Classify(model.EvidenceSource{
		URL:     "https://blogqualquer.com/post",
		Title:   "Receita de bolo",
		Snippet: "ingredientes e modo de preparo",
	}, profile)

	assert.Equal(t, model.StatusRejected, src.Status)
	assert.Equal(t, 0.0, src.Weight)
}

func TestClassify_WeightFormula(t *testing.T) {
	src := Classify(model.EvidenceSource{
		URL:     "https://www.linkedin.com/in/x",
		Title:   "João da Silva",
		Snippet: "Porto Alegre",
	}, profile)

	// high trust (0.8): 0.6*0.8 + 0.4*match
	expected := 0.6*0.8 + 0.4*src.MatchScore
	assert.InDelta(t, expected, src.Weight, 0.001)
}

func TestFilterStats_Reduction(t *testing.T) {
	sources := []model.EvidenceSource{
		{Status: model.StatusAccepted, Category: model.CategoryJudicial, Trust: model.TrustVeryHigh, MatchScore: 0.8},
		{Status: model.StatusRejected, Category: model.CategoryOther, Trust: model.TrustVeryLow, MatchScore: 0.0},
		{Status: model.StatusRejected, Category: model.CategoryOther, Trust: model.TrustVeryLow, MatchScore: 0.2},
		{Status: model.StatusWeakSignal, Category: model.CategoryGeneralMedia, Trust: model.TrustLow, MatchScore: 0.4},
	}

	stats := FilterStats(sources)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[model.StatusRejected])
	assert.Equal(t, 1, stats.ByStatus[model.StatusAccepted])
	assert.InDelta(t, 0.35, stats.MeanMatchScore, 0.001)
	assert.InDelta(t, 50.0, stats.RejectedPercent, 0.001)
}

func TestFilterStats_Empty(t *testing.T) {
	stats := FilterStats(nil)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0.0, stats.MeanMatchScore)
	assert.Equal(t, 0.0, stats.RejectedPercent)
}
