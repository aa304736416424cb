// Package synthesis turns collected, already-redacted evidence into the
// structured report body. The two model calls (fact extraction, then
// report synthesis with risk scoring) are an internal detail; callers see
// a single Generate operation.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vetta-research/dossier-cli/internal/model"
	"github.com/vetta-research/dossier-cli/internal/resilience"
	"github.com/vetta-research/dossier-cli/pkg/anthropic"
)

// Synthesizer generates the report body from evidence.
type Synthesizer interface {
	Generate(ctx context.Context, input Input) (*Output, error)
}

// Input carries everything the synthesis stage consumes. All free text in
// here must already have passed through the redaction engine's ForModel
// mode.
type Input struct {
	Query             model.Query
	JudicialNarrative string
	Sources           []model.EvidenceSource
	Identity          model.ConfidenceResult
	Judicial          model.ConfidenceResult
}

// Output is the synthesized report body plus the raw (uncapped) risk
// score the model assigned.
type Output struct {
	Profile         string
	JudicialSummary string
	BehavioralNotes string
	Conclusions     string
	RawRiskScore    int
	Usage           anthropic.TokenUsage
}

// Config selects the models for the two stages.
type Config struct {
	ExtractModel    string
	SynthesizeModel string
}

type twoStage struct {
	client anthropic.Client
	cfg    Config
}

// New creates the two-stage synthesizer.
func New(client anthropic.Client, cfg Config) Synthesizer {
	return &twoStage{client: client, cfg: cfg}
}

const extractSystemText = "Você é um analista de pesquisa extraindo fatos de fontes públicas sobre uma pessoa ou organização brasileira. Retorne somente um objeto JSON válido. Não invente fatos; use null quando a informação não estiver presente."

const extractPrompt = `Consulta: %s (tipo: %s)

Registros judiciais:
%s

Fontes coletadas:
%s

Extraia os fatos verificáveis sobre a entidade consultada. Retorne um objeto JSON:
{"facts": [{"text": "<fato>", "source_url": "<url>", "kind": "profissional|judicial|comportamental|outro"}]}`

const synthesizeSystemText = "Você é um analista sênior produzindo um dossiê estruturado de risco. Baseie-se exclusivamente nos fatos fornecidos. Retorne somente um objeto JSON válido."

const synthesizePrompt = `Consulta: %s (tipo: %s)

Resumo judicial:
%s

Fatos extraídos:
%s

Contexto de confiança (informativo, não altera os fatos):
- identidade: %s
- cobertura judicial: %s

Produza o dossiê. Retorne um objeto JSON:
{"profile": "<perfil da entidade>", "judicial_summary": "<resumo dos processos>", "behavioral_notes": "<padrões observados nas fontes>", "conclusions": "<conclusões>", "risk_score": <0-100>}`

// extractedFacts is the stage-A response shape.
type extractedFacts struct {
	Facts []struct {
		Text      string `json:"text"`
		SourceURL string `json:"source_url"`
		Kind      string `json:"kind"`
	} `json:"facts"`
}

// synthesizedReport is the stage-B response shape.
type synthesizedReport struct {
	Profile         string `json:"profile"`
	JudicialSummary string `json:"judicial_summary"`
	BehavioralNotes string `json:"behavioral_notes"`
	Conclusions     string `json:"conclusions"`
	RiskScore       *int   `json:"risk_score"`
}

func (s *twoStage) Generate(ctx context.Context, input Input) (*Output, error) {
	out := &Output{}

	facts, usage, err := s.extract(ctx, input)
	if err != nil {
		return nil, err
	}
	out.Usage.Add(usage)

	report, usage, err := s.synthesize(ctx, input, facts)
	if err != nil {
		return nil, err
	}
	out.Usage.Add(usage)

	out.Profile = report.Profile
	out.JudicialSummary = report.JudicialSummary
	out.BehavioralNotes = report.BehavioralNotes
	out.Conclusions = report.Conclusions
	out.RawRiskScore = clampScore(*report.RiskScore)
	return out, nil
}

// extract runs stage A: per-source fact extraction on the cheaper model.
func (s *twoStage) extract(ctx context.Context, input Input) (*extractedFacts, anthropic.TokenUsage, error) {
	prompt := fmt.Sprintf(extractPrompt,
		input.Query.Raw,
		input.Query.Type,
		orNone(input.JudicialNarrative),
		buildSourcesContext(input.Sources),
	)

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.cfg.ExtractModel,
		MaxTokens: 4096,
		System:    anthropic.BuildCachedSystemBlocks(extractSystemText),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, anthropic.TokenUsage{}, resilience.NewError(
			resilience.KindProviderUnavailable, "text generation failed", err)
	}
	resp.Usage.LogCost(s.cfg.ExtractModel, "extract")

	var facts extractedFacts
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &facts); err != nil {
		return nil, resp.Usage, resilience.NewError(
			resilience.KindMalformedModelOutput, "extraction response is not valid JSON",
			eris.Wrap(err, "synthesis: parse extraction"))
	}
	return &facts, resp.Usage, nil
}

// synthesize runs stage B: report assembly and risk scoring, sequentially
// after stage A because its prompt embeds the extracted facts.
func (s *twoStage) synthesize(ctx context.Context, input Input, facts *extractedFacts) (*synthesizedReport, anthropic.TokenUsage, error) {
	prompt := fmt.Sprintf(synthesizePrompt,
		input.Query.Raw,
		input.Query.Type,
		orNone(input.JudicialNarrative),
		buildFactsContext(facts),
		input.Identity.Level,
		input.Judicial.Level,
	)

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.cfg.SynthesizeModel,
		MaxTokens: 4096,
		System:    anthropic.BuildCachedSystemBlocks(synthesizeSystemText),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, anthropic.TokenUsage{}, resilience.NewError(
			resilience.KindProviderUnavailable, "text generation failed", err)
	}
	resp.Usage.LogCost(s.cfg.SynthesizeModel, "synthesize")

	var report synthesizedReport
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &report); err != nil {
		return nil, resp.Usage, resilience.NewError(
			resilience.KindMalformedModelOutput, "synthesis response is not valid JSON",
			eris.Wrap(err, "synthesis: parse report"))
	}
	if report.RiskScore == nil {
		return nil, resp.Usage, resilience.NewError(
			resilience.KindMalformedModelOutput, "synthesis response is missing the risk score", nil)
	}
	if report.Profile == "" && report.Conclusions == "" {
		zap.L().Warn("synthesis: report body is empty",
			zap.String("identifier", input.Query.NormalizedIdentifier),
		)
	}
	return &report, resp.Usage, nil
}

// buildSourcesContext formats accepted evidence into prompt blocks,
// preferring fetched text over the search snippet.
func buildSourcesContext(sources []model.EvidenceSource) string {
	if len(sources) == 0 {
		return "nenhuma fonte"
	}
	const maxCharsPerSource = 3000

	var b strings.Builder
	for _, src := range sources {
		content := src.FetchedText
		if content == "" {
			content = src.Snippet
		}
		if len(content) > maxCharsPerSource {
			content = content[:maxCharsPerSource]
		}
		fmt.Fprintf(&b, "--- %s (%s) [%s] ---\n%s\n\n", src.Title, src.URL, src.Category, content)
	}
	return strings.TrimSpace(b.String())
}

func buildFactsContext(facts *extractedFacts) string {
	if facts == nil || len(facts.Facts) == 0 {
		return "nenhum fato extraído"
	}
	var parts []string
	for _, f := range facts.Facts {
		if f.Text == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("- [%s] %s (fonte: %s)", f.Kind, f.Text, f.SourceURL))
	}
	if len(parts) == 0 {
		return "nenhum fato extraído"
	}
	return strings.Join(parts, "\n")
}

func orNone(text string) string {
	if strings.TrimSpace(text) == "" {
		return "nenhum registro"
	}
	return text
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// cleanJSON strips markdown code fences and leading/trailing prose the
// model sometimes wraps around the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx != -1 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx != -1 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}
	return text
}
