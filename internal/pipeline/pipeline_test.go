package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetta-research/dossier-cli/internal/config"
	"github.com/vetta-research/dossier-cli/internal/model"
	"github.com/vetta-research/dossier-cli/internal/resilience"
	"github.com/vetta-research/dossier-cli/internal/store"
	"github.com/vetta-research/dossier-cli/internal/synthesis"
	"github.com/vetta-research/dossier-cli/pkg/judicial"
	"github.com/vetta-research/dossier-cli/pkg/websearch"
)

// ===== Mocks =====

type mockStore struct {
	mu           sync.Mutex
	cached       *model.Report
	cacheErr     error
	savedReports map[string]*model.Report
	runs         []model.Run
	stages       []model.StageResult
	failedWith   string
}

func newMockStore() *mockStore {
	return &mockStore{savedReports: make(map[string]*model.Report)}
}

func (m *mockStore) GetCachedReport(_ context.Context, _ string, _ time.Duration) (*model.Report, error) {
	return m.cached, m.cacheErr
}

func (m *mockStore) SaveReport(_ context.Context, identifier string, _ []model.EvidenceSource, report *model.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savedReports[identifier] = report
	return nil
}

func (m *mockStore) CreateRun(_ context.Context, query model.Query) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := model.Run{ID: "run-1", Identifier: query.NormalizedIdentifier, QueryType: query.Type, Status: model.RunStatusQueued}
	m.runs = append(m.runs, run)
	return &run, nil
}

func (m *mockStore) UpdateRunStatus(_ context.Context, _ string, status model.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) > 0 {
		m.runs[0].Status = status
	}
	return nil
}

func (m *mockStore) FailRun(_ context.Context, _ string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedWith = errMsg
	if len(m.runs) > 0 {
		m.runs[0].Status = model.RunStatusFailed
	}
	return nil
}

func (m *mockStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.Run, error) {
	return m.runs, nil
}

func (m *mockStore) RecordStage(_ context.Context, _ string, stage model.StageResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
	return nil
}

func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

func (m *mockStore) stageNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, s := range m.stages {
		names = append(names, s.Name)
	}
	return names
}

type mockJudicial struct {
	mu     sync.Mutex
	result *judicial.Result
	err    error
	calls  int
}

func (m *mockJudicial) Search(_ context.Context, _ string) (*judicial.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &judicial.Result{}, nil
	}
	return m.result, nil
}

type mockWebSearch struct {
	mu      sync.Mutex
	results []websearch.Result
	err     error
	queries []string
}

func (m *mockWebSearch) Search(_ context.Context, query string, _ int) ([]websearch.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

type mockFetcher struct {
	mu      sync.Mutex
	text    string
	err     error
	fetched []string
}

func (m *mockFetcher) Fetch(_ context.Context, targetURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = append(m.fetched, targetURL)
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *mockFetcher) Allowed(string) bool { return true }

type mockSynthesizer struct {
	mu     sync.Mutex
	output *synthesis.Output
	err    error
	inputs []synthesis.Input
}

func (m *mockSynthesizer) Generate(_ context.Context, input synthesis.Input) (*synthesis.Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

type mockMessenger struct {
	mu           sync.Mutex
	destinations []string
	texts        []string
}

func (m *mockMessenger) Deliver(_ context.Context, destination, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destinations = append(m.destinations, destination)
	m.texts = append(m.texts, text)
	return true
}

// ===== Fixtures =====

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Judicial.Enabled = true
	cfg.WebSearch.Enabled = true
	cfg.WebSearch.Limit = 20
	cfg.Fetch.Enabled = true
	cfg.Fetch.Concurrency = 4
	cfg.Fetch.TimeoutSecs = 5
	cfg.Pipeline.FreshnessDays = 7
	cfg.Pipeline.AdaptiveThreshold = 15
	cfg.Pipeline.IndexLagDays = 30
	cfg.Pipeline.MinQueryLength = 3
	cfg.Pipeline.MaxSourcesPerQuery = 12
	return cfg
}

type fixture struct {
	store     *mockStore
	judicial  *mockJudicial
	websearch *mockWebSearch
	fetcher   *mockFetcher
	synth     *mockSynthesizer
	messenger *mockMessenger
	pipeline  *Pipeline
}

func newFixture(cfg *config.Config) *fixture {
	f := &fixture{
		store:     newMockStore(),
		judicial:  &mockJudicial{},
		websearch: &mockWebSearch{},
		fetcher:   &mockFetcher{text: "Conteúdo da página sobre a pessoa pesquisada."},
		synth: &mockSynthesizer{output: &synthesis.Output{
			Profile:      "Empresário do setor de transportes.",
			Conclusions:  "Sem apontamentos relevantes.",
			RawRiskScore: 20,
		}},
		messenger: &mockMessenger{},
	}
	f.pipeline = New(cfg, f.store, f.judicial, f.websearch, f.fetcher, f.synth, f.messenger)
	return f
}

func judicialFixture() *judicial.Result {
	return &judicial.Result{
		InvolvedParty: "Carlos Eduardo Andrade",
		TotalCount:    2,
		Records: []judicial.Record{
			{
				CaseNumber: "0001234-56.2019.8.26.0100",
				Category:   "Execução de Título Extrajudicial",
				Subject:    "Contratos Bancários",
				Court:      "TJSP",
				Region:     "SP",
				Role:       "réu",
				StartDate:  time.Date(2019, 3, 12, 0, 0, 0, 0, time.UTC),
			},
			{
				CaseNumber: "0005678-90.2021.8.26.0100",
				Category:   "Procedimento Comum Cível",
				Subject:    "Indenização por Dano Material",
				Court:      "TJSP",
				Region:     "SP",
				Role:       "autor",
				StartDate:  time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}
}

func webFixture(n int) []websearch.Result {
	out := make([]websearch.Result, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, websearch.Result{
			URL:     "https://g1.globo.com/noticia-" + string(rune('a'+i)),
			Title:   "Carlos Eduardo Andrade em notícia",
			Snippet: "Empresário Carlos Eduardo Andrade participou de evento em São Paulo.",
		})
	}
	return out
}

// ===== Tests =====

func TestRun_QueryTooShort(t *testing.T) {
	f := newFixture(testConfig())

	report, err := f.pipeline.Run(context.Background(), "ab", RunOptions{})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, resilience.KindInvalidInput, resilience.KindOf(err))

	// Rejected before anything ran.
	assert.Zero(t, f.judicial.calls)
	assert.Empty(t, f.websearch.queries)
	assert.Empty(t, f.store.runs)
}

func TestRun_CacheHit(t *testing.T) {
	f := newFixture(testConfig())
	f.store.cached = &model.Report{
		Profile:     "Relatório anterior.",
		GeneratedAt: time.Now().UTC().Add(-time.Hour),
	}

	report, err := f.pipeline.Run(context.Background(), "Carlos Eduardo Andrade", RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.True(t, report.FromCache)
	assert.Equal(t, "Relatório anterior.", report.Profile)
	assert.Zero(t, f.judicial.calls)
	assert.Empty(t, f.websearch.queries)
	assert.Empty(t, f.synth.inputs)
}

func TestRun_CacheUnavailableProceeds(t *testing.T) {
	f := newFixture(testConfig())
	f.store.cacheErr = eris.New("connection refused")
	f.judicial.result = judicialFixture()
	f.websearch.results = webFixture(5)

	report, err := f.pipeline.Run(context.Background(), "Carlos Eduardo Andrade", RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.False(t, report.FromCache)
	assert.Equal(t, 1, f.judicial.calls)
}

func TestRun_AdaptiveSearchTriggered(t *testing.T) {
	f := newFixture(testConfig())
	// Zero judicial records and a thin web result set.
	f.judicial.result = &judicial.Result{}
	f.websearch.results = webFixture(4)

	_, err := f.pipeline.Run(context.Background(), "Carlos Eduardo Andrade", RunOptions{})
	require.NoError(t, err)

	// The initial search plus one per adaptive scope.
	assert.Len(t, f.websearch.queries, 1+len(adaptiveQueries("x")))
	joined := strings.Join(f.websearch.queries, "\n")
	assert.Contains(t, joined, "site:gov.br")
	assert.Contains(t, joined, "lattes.cnpq.br")
}

func TestRun_AdaptiveSearchSkippedWithJudicialRecords(t *testing.T) {
	f := newFixture(testConfig())
	f.judicial.result = judicialFixture()
	f.websearch.results = webFixture(3)

	_, err := f.pipeline.Run(context.Background(), "Carlos Eduardo Andrade", RunOptions{})
	require.NoError(t, err)

	assert.Len(t, f.websearch.queries, 1)
	for _, s := range f.store.stages {
		if s.Name == "adaptive_search" {
			assert.Equal(t, model.StageStatusSkipped, s.Status)
		}
	}
}

func TestRun_AdaptiveSearchSkippedWithEnoughSources(t *testing.T) {
	f := newFixture(testConfig())
	f.judicial.result = &judicial.Result{}
	f.websearch.results = webFixture(16)

	_, err := f.pipeline.Run(context.Background(), "Carlos Eduardo Andrade", RunOptions{})
	require.NoError(t, err)

	assert.Len(t, f.websearch.queries, 1)
}

func TestRun_DegradedJudicialStillProducesReport(t *testing.T) {
	f := newFixture(testConfig())
	f.judicial.err = eris.New("503 service unavailable")
	f.websearch.results = webFixture(16)

	report, err := f.pipeline.Run(context.Background(), "Carlos Eduardo Andrade", RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, report)

	// A failed lookup scores coverage low, never high.
	assert.Equal(t, model.ConfidenceLow, report.Confidence.Judicial.Level)
	assert.NotEmpty(t, report.Disclaimers)
}

func TestRun_SynthesisFailureAborts(t *testing.T) {
	f := newFixture(testConfig())
	f.judicial.result = judicialFixture()
	f.websearch.results = webFixture(5)
	f.synth.err = resilience.NewError(resilience.KindMalformedModelOutput, "report generation produced unusable output", nil)

	report, err := f.pipeline.Run(context.Background(), "Carlos Eduardo Andrade", RunOptions{})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, resilience.KindMalformedModelOutput, resilience.KindOf(err))

	// The run row records the failure; nothing is cached.
	assert.Equal(t, model.RunStatusFailed, f.store.runs[0].Status)
	assert.NotEmpty(t, f.store.failedWith)
	assert.Empty(t, f.store.savedReports)
}

func TestRun_DocumentQueryResolvesNameFirst(t *testing.T) {
	f := newFixture(testConfig())
	f.judicial.result = judicialFixture()
	f.websearch.results = webFixture(5)

	report, err := f.pipeline.Run(context.Background(), "123.456.789-01", RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, report)

	// The web search runs with the resolved party name, not the document.
	require.NotEmpty(t, f.websearch.queries)
	assert.Equal(t, "Carlos Eduardo Andrade", f.websearch.queries[0])
	assert.Equal(t, model.QueryTypeDocument, report.Query.Type)
}

func TestRun_CapAppliedOnLowConfidence(t *testing.T) {
	f := newFixture(testConfig())
	// Name-only query, no judicial coverage, thin web evidence: both
	// confidences land low, so a high raw score must be capped.
	f.judicial.result = &judicial.Result{}
	f.websearch.results = webFixture(2)
	f.synth.output.RawRiskScore = 90

	report, err := f.pipeline.Run(context.Background(), "Carlos Eduardo Andrade", RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.True(t, report.Risk.Capped)
	assert.Equal(t, 90, report.Risk.OriginalValue)
	assert.LessOrEqual(t, report.Risk.Value, 40)
}

func TestRun_ReportPersistedAndStagesRecorded(t *testing.T) {
	f := newFixture(testConfig())
	f.judicial.result = judicialFixture()
	f.websearch.results = webFixture(5)

	report, err := f.pipeline.Run(context.Background(), "Carlos Eduardo Andrade", RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, report)

	saved, ok := f.store.savedReports[report.Query.NormalizedIdentifier]
	require.True(t, ok)
	assert.Equal(t, report.Profile, saved.Profile)
	assert.Equal(t, model.RunStatusComplete, f.store.runs[0].Status)

	names := f.store.stageNames()
	assert.Contains(t, names, "cache_lookup")
	assert.Contains(t, names, "judicial_lookup")
	assert.Contains(t, names, "web_search")
	assert.Contains(t, names, "classify_filter")
	assert.Contains(t, names, "bounded_fetch")
	assert.Contains(t, names, "persist")
}

func TestRun_DeliverSendsRenderedReport(t *testing.T) {
	f := newFixture(testConfig())
	f.judicial.result = judicialFixture()
	f.websearch.results = webFixture(5)

	_, err := f.pipeline.Run(context.Background(), "Carlos Eduardo Andrade", RunOptions{
		Deliver:     true,
		Destination: "+5511999990000",
	})
	require.NoError(t, err)

	require.Len(t, f.messenger.destinations, 1)
	assert.Equal(t, "+5511999990000", f.messenger.destinations[0])
	assert.Contains(t, f.messenger.texts[0], "RELATÓRIO DE PESQUISA")
	assert.Contains(t, f.messenger.texts[0], "PONTUAÇÃO DE RISCO")
}

func TestRun_SynthesisInputIsRedacted(t *testing.T) {
	f := newFixture(testConfig())
	f.judicial.result = &judicial.Result{}
	f.websearch.results = []websearch.Result{
		{
			URL:     "https://g1.globo.com/noticia-cpf",
			Title:   "Carlos Eduardo Andrade",
			Snippet: "Empresário Carlos Eduardo Andrade, CPF 123.456.789-01, citado em matéria sobre São Paulo.",
		},
	}

	_, err := f.pipeline.Run(context.Background(), "Carlos Eduardo Andrade", RunOptions{})
	require.NoError(t, err)

	require.Len(t, f.synth.inputs, 1)
	for _, src := range f.synth.inputs[0].Sources {
		assert.NotContains(t, src.Snippet, "123.456.789-01")
	}
}

func TestSelectForFetch_WeakSignalsOnlyWithoutJudicialCoverage(t *testing.T) {
	classified := []model.EvidenceSource{
		{URL: "https://a.example", Status: model.StatusAccepted, Weight: 0.9},
		{URL: "https://b.example", Status: model.StatusWeakSignal, Weight: 0.3},
		{URL: "https://c.example", Status: model.StatusRejected, Weight: 0.1},
	}

	withCoverage := selectForFetch(classified, false, 12)
	require.Len(t, withCoverage, 1)
	assert.Equal(t, "https://a.example", withCoverage[0].URL)

	withoutCoverage := selectForFetch(classified, true, 12)
	require.Len(t, withoutCoverage, 2)
}

func TestSelectForFetch_CapsAndOrdersByWeight(t *testing.T) {
	var classified []model.EvidenceSource
	for i := 0; i < 20; i++ {
		classified = append(classified, model.EvidenceSource{
			URL:    "https://example.com/" + string(rune('a'+i)),
			Status: model.StatusAccepted,
			Weight: float64(i) / 20,
		})
	}

	picked := selectForFetch(classified, false, 5)
	require.Len(t, picked, 5)
	for i := 1; i < len(picked); i++ {
		assert.GreaterOrEqual(t, picked[i-1].Weight, picked[i].Weight)
	}
}

func TestRender_FullReport(t *testing.T) {
	report := &model.Report{
		Query:           model.Query{Raw: "Carlos Eduardo Andrade"},
		Profile:         "Empresário do setor de transportes.",
		JudicialSummary: "Dois processos cíveis no TJSP.",
		Conclusions:     "Risco moderado.",
		Risk: model.RiskScore{
			Value:         40,
			Level:         model.RiskModerate,
			Capped:        true,
			OriginalValue: 65,
			CapReasons:    []string{"confiança de identidade baixa"},
		},
		Confidence: model.ReportConfidence{
			Identity: model.ConfidenceResult{Level: model.ConfidenceLow},
			Judicial: model.ConfidenceResult{Level: model.ConfidenceMedium},
		},
		Disclaimers: []model.Disclaimer{
			{Title: "Possível homônimo", Text: "A identidade não pôde ser confirmada.", Critical: true},
		},
		Sources: []model.EvidenceSource{
			{URL: "https://g1.globo.com/x", Title: "Notícia", Category: model.CategoryLargeMedia, Status: model.StatusAccepted},
			{URL: "https://blog.example/x", Title: "Blog", Category: model.CategoryOther, Status: model.StatusRejected},
		},
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	text := Render(report)
	assert.Contains(t, text, "40/100 (MODERADO)")
	assert.Contains(t, text, "Pontuação original 65")
	assert.Contains(t, text, "Possível homônimo")
	assert.Contains(t, text, "https://g1.globo.com/x")
	// Rejected sources never appear in the rendered output.
	assert.NotContains(t, text, "https://blog.example/x")
}
