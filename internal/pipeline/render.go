package pipeline

import (
	"fmt"
	"strings"

	"github.com/vetta-research/dossier-cli/internal/model"
)

var riskLabels = map[model.RiskLevel]string{
	model.RiskLow:      "BAIXO",
	model.RiskModerate: "MODERADO",
	model.RiskHigh:     "ALTO",
	model.RiskCritical: "CRÍTICO",
}

var confidenceLabels = map[model.ConfidenceLevel]string{
	model.ConfidenceHigh:   "alta",
	model.ConfidenceMedium: "média",
	model.ConfidenceLow:    "baixa",
}

// Render formats a report as plain text for terminal output and
// messenger delivery.
func Render(report *model.Report) string {
	var b strings.Builder

	b.WriteString("RELATÓRIO DE PESQUISA\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	fmt.Fprintf(&b, "Consulta: %s\n", report.Query.Raw)
	fmt.Fprintf(&b, "Gerado em: %s\n", report.GeneratedAt.Format("02/01/2006 15:04 MST"))
	if report.FromCache {
		b.WriteString("Origem: cache (relatório dentro da janela de validade)\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "PONTUAÇÃO DE RISCO: %d/100 (%s)\n", report.Risk.Value, riskLabels[report.Risk.Level])
	if report.Risk.Capped {
		fmt.Fprintf(&b, "  Pontuação original %d, limitada por: %s\n",
			report.Risk.OriginalValue, strings.Join(report.Risk.CapReasons, "; "))
	}
	fmt.Fprintf(&b, "Confiança de identidade: %s\n", confidenceLabels[report.Confidence.Identity.Level])
	fmt.Fprintf(&b, "Confiança da cobertura judicial: %s\n\n", confidenceLabels[report.Confidence.Judicial.Level])

	section(&b, "PERFIL", report.Profile)
	section(&b, "HISTÓRICO JUDICIAL", report.JudicialSummary)
	section(&b, "OBSERVAÇÕES COMPORTAMENTAIS", report.BehavioralNotes)
	section(&b, "CONCLUSÕES", report.Conclusions)

	if len(report.Disclaimers) > 0 {
		b.WriteString("AVISOS\n")
		b.WriteString(strings.Repeat("-", 60) + "\n")
		for _, d := range report.Disclaimers {
			marker := "•"
			if d.Critical {
				marker = "⚠"
			}
			fmt.Fprintf(&b, "%s %s: %s\n", marker, d.Title, d.Text)
		}
		b.WriteString("\n")
	}

	if n := countUsable(report.Sources); n > 0 {
		fmt.Fprintf(&b, "FONTES (%d consideradas)\n", n)
		b.WriteString(strings.Repeat("-", 60) + "\n")
		for _, s := range report.Sources {
			if s.Status == model.StatusRejected {
				continue
			}
			fmt.Fprintf(&b, "[%s] %s\n    %s\n", s.Category, s.Title, s.URL)
		}
	}

	return b.String()
}

func section(b *strings.Builder, title, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("-", 60) + "\n")
	b.WriteString(strings.TrimSpace(text) + "\n\n")
}

func countUsable(sources []model.EvidenceSource) int {
	n := 0
	for _, s := range sources {
		if s.Status != model.StatusRejected {
			n++
		}
	}
	return n
}
