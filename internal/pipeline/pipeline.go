// Package pipeline orchestrates a dossier run: normalize, cache lookup,
// identity resolution, adaptive search, classification, bounded fetch,
// confidence estimation, redaction, two-stage synthesis, score capping,
// disclaimers, persistence. Every external call is wrapped so failure
// degrades the report instead of aborting it; only an unusable synthesis
// response aborts a run.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vetta-research/dossier-cli/internal/classify"
	"github.com/vetta-research/dossier-cli/internal/confidence"
	"github.com/vetta-research/dossier-cli/internal/config"
	"github.com/vetta-research/dossier-cli/internal/disclaimer"
	"github.com/vetta-research/dossier-cli/internal/fetch"
	"github.com/vetta-research/dossier-cli/internal/model"
	"github.com/vetta-research/dossier-cli/internal/redact"
	"github.com/vetta-research/dossier-cli/internal/resilience"
	"github.com/vetta-research/dossier-cli/internal/score"
	"github.com/vetta-research/dossier-cli/internal/store"
	"github.com/vetta-research/dossier-cli/internal/synthesis"
	"github.com/vetta-research/dossier-cli/pkg/judicial"
	"github.com/vetta-research/dossier-cli/pkg/messenger"
	"github.com/vetta-research/dossier-cli/pkg/websearch"
)

// Pipeline holds the collaborators of a dossier run.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	judicial  judicial.Client
	websearch websearch.Client
	fetcher   fetch.Fetcher
	synth     synthesis.Synthesizer
	messenger messenger.Client
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	judicialClient judicial.Client,
	searchClient websearch.Client,
	fetcher fetch.Fetcher,
	synth synthesis.Synthesizer,
	messengerClient messenger.Client,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		judicial:  judicialClient,
		websearch: searchClient,
		fetcher:   fetcher,
		synth:     synth,
		messenger: messengerClient,
	}
}

// RunOptions carries per-run flags.
type RunOptions struct {
	// Deliver sends the rendered report to Destination after persistence.
	Deliver     bool
	Destination string
}

// Run executes the full pipeline for a single query.
func (p *Pipeline) Run(ctx context.Context, rawQuery string, opts RunOptions) (*model.Report, error) {
	// Input is rejected before any external call.
	minLen := p.cfg.Pipeline.MinQueryLength
	if minLen <= 0 {
		minLen = 3
	}
	if len(strings.TrimSpace(rawQuery)) < minLen {
		return nil, resilience.NewError(resilience.KindInvalidInput, "query is too short", nil)
	}

	query := model.NewQuery(rawQuery)
	log := zap.L().With(
		zap.String("identifier", redact.Redact(query.NormalizedIdentifier, redact.ForLogs)),
		zap.String("query_type", string(query.Type)),
	)
	log.Info("pipeline: starting run")

	run, err := p.store.CreateRun(ctx, query)
	if err != nil {
		// Bookkeeping is best-effort; the run proceeds without it.
		log.Warn("pipeline: create run failed", zap.Error(err))
		run = &model.Run{}
	}

	setStatus := func(status model.RunStatus) {
		if run.ID == "" {
			return
		}
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	// Stage tracking helper. A stage fn returns its own result; a non-nil
	// error marks the stage degraded, never failed, because each stage
	// substitutes an empty result and the run continues.
	trackStage := func(name string, fn func() (*model.StageResult, error)) {
		start := time.Now()
		stage, fnErr := fn()
		if stage == nil {
			stage = &model.StageResult{}
		}
		stage.Name = name
		stage.Duration = time.Since(start).Milliseconds()

		if fnErr != nil {
			if stage.Status == "" {
				stage.Status = model.StageStatusDegraded
			}
			stage.Error = redact.Redact(fnErr.Error(), redact.ForLogs)
			log.Warn("pipeline: stage degraded",
				zap.String("stage", name),
				zap.Int64("duration_ms", stage.Duration),
				zap.Error(fnErr),
			)
		} else {
			if stage.Status == "" {
				stage.Status = model.StageStatusComplete
			}
			log.Info("pipeline: stage done",
				zap.String("stage", name),
				zap.String("status", string(stage.Status)),
				zap.Int64("duration_ms", stage.Duration),
			)
		}

		if run.ID != "" {
			if recErr := p.store.RecordStage(ctx, run.ID, *stage); recErr != nil {
				log.Warn("pipeline: failed to record stage", zap.Error(recErr))
			}
		}
	}

	// ===== Cache lookup =====
	var cached *model.Report
	trackStage("cache_lookup", func() (*model.StageResult, error) {
		c, cacheErr := p.store.GetCachedReport(ctx, query.NormalizedIdentifier, p.cfg.Pipeline.Freshness())
		if cacheErr != nil {
			// Store trouble never fails a run; it just disables caching.
			return nil, resilience.NewError(resilience.KindCacheUnavailable, "report cache unavailable", cacheErr)
		}
		cached = c
		return &model.StageResult{Metadata: map[string]any{"hit": c != nil}}, nil
	})
	if cached != nil {
		cached.FromCache = true
		setStatus(model.RunStatusComplete)
		log.Info("pipeline: served from cache")
		return cached, nil
	}

	// ===== Identity resolution =====
	setStatus(model.RunStatusResolving)

	judResult, webResults := p.resolveIdentity(ctx, query, trackStage)

	// ===== Adaptive search =====
	// Only when the judicial anchor is absent and the evidence base is
	// thin does the pipeline raise its own effort level.
	adaptiveThreshold := p.cfg.Pipeline.AdaptiveThreshold
	if adaptiveThreshold <= 0 {
		adaptiveThreshold = 15
	}
	if len(judResult.Records) == 0 && len(webResults) < adaptiveThreshold {
		trackStage("adaptive_search", func() (*model.StageResult, error) {
			extra, searchErr := p.adaptiveSearch(ctx, query)
			webResults = append(webResults, extra...)
			return &model.StageResult{
				Metadata: map[string]any{"extra_sources": len(extra)},
			}, searchErr
		})
	} else {
		trackStage("adaptive_search", func() (*model.StageResult, error) {
			return &model.StageResult{Status: model.StageStatusSkipped}, nil
		})
	}

	// ===== Classification =====
	setStatus(model.RunStatusClassifying)

	profile := classify.BaseProfile{
		NormalizedName: queryName(query, judResult),
		Regions:        judResult.Regions(),
	}

	var classified []model.EvidenceSource
	var stats model.FilterStats
	trackStage("classify_filter", func() (*model.StageResult, error) {
		for _, raw := range dedupeByURL(webResults) {
			classified = append(classified, classify.Classify(raw, profile))
		}
		stats = classify.FilterStats(classified)
		return &model.StageResult{
			Metadata: map[string]any{
				"total":            stats.Total,
				"rejected_percent": stats.RejectedPercent,
			},
		}, nil
	})

	// ===== Bounded fetch =====
	setStatus(model.RunStatusFetching)

	selected := selectForFetch(classified, len(judResult.Records) == 0, p.cfg.Pipeline.MaxSourcesPerQuery)
	trackStage("bounded_fetch", func() (*model.StageResult, error) {
		fetched := p.boundedFetch(ctx, selected)
		return &model.StageResult{
			Metadata: map[string]any{"selected": len(selected), "fetched": fetched},
		}, nil
	})

	// ===== Confidences =====
	identityConf := confidence.EstimateIdentity(confidence.IdentityInput{
		QueryType:     query.Type,
		QueryName:     query.Raw,
		RecordName:    judResult.InvolvedParty,
		RecordRegions: recordRegions(judResult),
		WebResults:    classified,
		RecordCount:   len(judResult.Records),
	})
	coverageConf := confidence.EstimateCoverage(judResult)

	// ===== Redaction + synthesis =====
	setStatus(model.RunStatusSynthesis)

	narrative := redact.Redact(p.judicialNarrative(judResult), redact.ForModel)
	redacted := redactSources(selected)

	synthOut, err := p.synth.Generate(ctx, synthesis.Input{
		Query:             query,
		JudicialNarrative: narrative,
		Sources:           redacted,
		Identity:          identityConf,
		Judicial:          coverageConf,
	})
	if err != nil {
		// The structured fields are the report; without them there is
		// nothing to degrade into.
		if run.ID != "" {
			_ = p.store.FailRun(ctx, run.ID, resilience.UserMessage(err))
		}
		return nil, err
	}

	// ===== Cap, disclaimers, assembly =====
	risk := score.Cap(synthOut.RawRiskScore, identityConf.Level, coverageConf.Level)

	disclaimers := disclaimer.Generate(disclaimer.Input{
		Identity:     identityConf,
		Judicial:     coverageConf,
		Stats:        stats,
		Risk:         risk,
		RecordCount:  len(judResult.Records),
		IndexLagDays: p.cfg.Pipeline.IndexLagDays,
	})

	report := &model.Report{
		Query:           query,
		Profile:         synthOut.Profile,
		JudicialSummary: synthOut.JudicialSummary,
		BehavioralNotes: synthOut.BehavioralNotes,
		Conclusions:     synthOut.Conclusions,
		Risk:            risk,
		Confidence: model.ReportConfidence{
			Identity: identityConf,
			Judicial: coverageConf,
		},
		Disclaimers: disclaimers,
		Sources:     classified,
		GeneratedAt: time.Now().UTC(),
	}

	// ===== Persist =====
	trackStage("persist", func() (*model.StageResult, error) {
		if saveErr := p.store.SaveReport(ctx, query.NormalizedIdentifier, classified, report); saveErr != nil {
			return nil, resilience.NewError(resilience.KindCacheUnavailable, "report not cached", saveErr)
		}
		return nil, nil
	})

	setStatus(model.RunStatusComplete)

	// ===== Delivery (fire and forget) =====
	if opts.Deliver && p.messenger != nil && opts.Destination != "" {
		if !p.messenger.Deliver(ctx, opts.Destination, Render(report)) {
			log.Warn("pipeline: report delivery failed")
		}
	}

	log.Info("pipeline: run complete",
		zap.String("run_id", run.ID),
		zap.Int("risk_score", report.Risk.Value),
		zap.String("identity_confidence", string(identityConf.Level)),
		zap.String("judicial_confidence", string(coverageConf.Level)),
	)
	return report, nil
}

// resolveIdentity runs the judicial lookup and the initial web search.
// Document queries go judicial-first so the resolved party name can seed
// the web search; name queries fan out in parallel.
func (p *Pipeline) resolveIdentity(ctx context.Context, query model.Query, trackStage func(string, func() (*model.StageResult, error))) (*model.JudicialResult, []model.EvidenceSource) {
	judResult := &model.JudicialResult{}
	var webResults []model.EvidenceSource

	judicialLookup := func(ctx context.Context) error {
		if p.judicial == nil || !p.cfg.Judicial.Enabled {
			return nil
		}
		result, err := p.judicial.Search(ctx, query.Raw)
		if err != nil {
			judResult = &model.JudicialResult{Err: resilience.UserMessage(
				resilience.NewError(resilience.KindProviderUnavailable, "judicial lookup failed", err))}
			return err
		}
		judResult = toJudicialResult(result)
		return nil
	}

	webLookup := func(ctx context.Context, term string) error {
		if p.websearch == nil || !p.cfg.WebSearch.Enabled {
			return nil
		}
		results, err := p.websearch.Search(ctx, term, p.cfg.WebSearch.Limit)
		if err != nil {
			return err
		}
		webResults = append(webResults, toEvidence(results)...)
		return nil
	}

	if query.Type == model.QueryTypeDocument {
		trackStage("judicial_lookup", func() (*model.StageResult, error) {
			err := judicialLookup(ctx)
			return &model.StageResult{Metadata: map[string]any{"records": len(judResult.Records)}}, err
		})

		// Search the web with the name the records resolved; a bare
		// document number retrieves almost nothing.
		term := judResult.InvolvedParty
		if term == "" {
			term = query.Raw
		}
		trackStage("web_search", func() (*model.StageResult, error) {
			err := webLookup(ctx, term)
			return &model.StageResult{Metadata: map[string]any{"results": len(webResults)}}, err
		})
		return judResult, webResults
	}

	// Name query: no ordering dependency between the two lookups.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trackStage("judicial_lookup", func() (*model.StageResult, error) {
			err := judicialLookup(gCtx)
			return &model.StageResult{Metadata: map[string]any{"records": len(judResult.Records)}}, err
		})
		return nil
	})
	g.Go(func() error {
		trackStage("web_search", func() (*model.StageResult, error) {
			err := webLookup(gCtx, query.Raw)
			return &model.StageResult{Metadata: map[string]any{"results": len(webResults)}}, err
		})
		return nil
	})
	_ = g.Wait()

	return judResult, webResults
}

// boundedFetch attaches page text to the selected sources with bounded
// concurrency. One slow or failing fetch never blocks or fails the batch.
func (p *Pipeline) boundedFetch(ctx context.Context, selected []*model.EvidenceSource) int {
	if p.fetcher == nil || !p.cfg.Fetch.Enabled || len(selected) == 0 {
		return 0
	}

	concurrency := p.cfg.Fetch.Concurrency
	if concurrency <= 0 {
		concurrency = 12
	}
	timeout := time.Duration(p.cfg.Fetch.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	fetched := make([]bool, len(selected))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, src := range selected {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gCtx, timeout)
			defer cancel()

			text, err := p.fetcher.Fetch(fetchCtx, src.URL)
			if err != nil {
				zap.L().Debug("pipeline: fetch skipped",
					zap.String("url", src.URL),
					zap.Error(err),
				)
				return nil
			}
			src.FetchedText = text
			fetched[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range fetched {
		if ok {
			n++
		}
	}
	return n
}

// adaptiveSearch issues additional, differently-scoped queries to
// compensate for a missing judicial anchor. Per-scope failures degrade to
// whatever the other scopes returned.
func (p *Pipeline) adaptiveSearch(ctx context.Context, query model.Query) ([]model.EvidenceSource, error) {
	if p.websearch == nil || !p.cfg.WebSearch.Enabled {
		return nil, nil
	}

	var out []model.EvidenceSource
	var lastErr error
	for _, q := range adaptiveQueries(query.Raw) {
		results, err := p.websearch.Search(ctx, q, p.cfg.WebSearch.Limit/2)
		if err != nil {
			lastErr = eris.Wrapf(err, "pipeline: adaptive search %q", q)
			continue
		}
		out = append(out, toEvidence(results)...)
	}
	return out, lastErr
}

// judicialNarrative formats the judicial result for the synthesis prompt.
func (p *Pipeline) judicialNarrative(result *model.JudicialResult) string {
	if result.Failed() || len(result.Records) == 0 {
		return ""
	}
	return judicial.FormatForNarrative(fromJudicialResult(result))
}

// selectForFetch picks the sources whose pages are worth fetching:
// accepted ones, plus weak signals only when there is no judicial
// coverage to lean on. Capped at maxSources, strongest first.
func selectForFetch(classified []model.EvidenceSource, judicialEmpty bool, maxSources int) []*model.EvidenceSource {
	if maxSources <= 0 {
		maxSources = 12
	}

	var picked []*model.EvidenceSource
	for _, status := range []model.SourceStatus{model.StatusAccepted, model.StatusWeakSignal} {
		if status == model.StatusWeakSignal && !judicialEmpty {
			break
		}
		for i := range classified {
			if classified[i].Status != status {
				continue
			}
			picked = append(picked, &classified[i])
		}
	}

	// Strongest evidence first so the cap trims the tail.
	for i := 1; i < len(picked); i++ {
		for j := i; j > 0 && picked[j].Weight > picked[j-1].Weight; j-- {
			picked[j], picked[j-1] = picked[j-1], picked[j]
		}
	}

	if len(picked) > maxSources {
		picked = picked[:maxSources]
	}
	return picked
}

// redactSources returns model-safe copies of the selected sources. Every
// piece of third-party text passes through ForModel redaction before it
// can reach a prompt.
func redactSources(selected []*model.EvidenceSource) []model.EvidenceSource {
	out := make([]model.EvidenceSource, 0, len(selected))
	for _, src := range selected {
		clean := *src
		clean.Title = redact.Redact(src.Title, redact.ForModel)
		clean.Snippet = redact.Redact(src.Snippet, redact.ForModel)
		clean.FetchedText = redact.Redact(src.FetchedText, redact.ForModel)
		out = append(out, clean)
	}
	return out
}

// queryName returns the best normalized name available for matching: the
// resolved party for document queries, otherwise the query itself.
func queryName(query model.Query, judResult *model.JudicialResult) string {
	if query.Type == model.QueryTypeDocument {
		return model.NormalizeForComparison(judResult.InvolvedParty)
	}
	return query.NormalizedIdentifier
}

func recordRegions(result *model.JudicialResult) []string {
	var out []string
	for _, r := range result.Records {
		if r.Region != "" {
			out = append(out, r.Region)
		}
	}
	return out
}

func dedupeByURL(sources []model.EvidenceSource) []model.EvidenceSource {
	seen := make(map[string]bool, len(sources))
	var out []model.EvidenceSource
	for _, s := range sources {
		if s.URL == "" || seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		out = append(out, s)
	}
	return out
}

func toEvidence(results []websearch.Result) []model.EvidenceSource {
	out := make([]model.EvidenceSource, 0, len(results))
	for _, r := range results {
		out = append(out, model.EvidenceSource{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Snippet,
		})
	}
	return out
}

// toJudicialResult converts the provider's result into the pipeline view,
// tagging each record with its priority-matched main action.
func toJudicialResult(result *judicial.Result) *model.JudicialResult {
	out := &model.JudicialResult{
		InvolvedParty: result.InvolvedParty,
		TotalCount:    result.TotalCount,
	}
	for _, r := range result.Records {
		rec := model.JudicialRecord{
			CaseNumber: r.CaseNumber,
			Category:   r.Category,
			Subject:    r.Subject,
			Court:      r.Court,
			Region:     r.Region,
			Role:       r.Role,
			StartDate:  r.StartDate,
		}
		if action, ok := judicial.MainAction(r.Movements); ok {
			rec.MainAction = action
		}
		out.Records = append(out.Records, rec)
	}
	return out
}

// fromJudicialResult rebuilds the provider shape for narrative formatting.
func fromJudicialResult(result *model.JudicialResult) *judicial.Result {
	out := &judicial.Result{
		InvolvedParty: result.InvolvedParty,
		TotalCount:    result.TotalCount,
	}
	for _, r := range result.Records {
		out.Records = append(out.Records, judicial.Record{
			CaseNumber: r.CaseNumber,
			Category:   r.Category,
			Subject:    r.Subject,
			Court:      r.Court,
			Region:     r.Region,
			Role:       r.Role,
			StartDate:  r.StartDate,
		})
	}
	return out
}
