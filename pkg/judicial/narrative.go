package judicial

import (
	"fmt"
	"strings"
)

// actionMatcher tags one case-movement pattern. Matchers run in priority
// order; the first hit is the record's main action.
type actionMatcher struct {
	tag      string
	keywords []string
}

var actionMatchers = []actionMatcher{
	{"condenação", []string{"condenação", "condenado", "condenatória", "sentença condenatória"}},
	{"prisão", []string{"prisão", "mandado de prisão", "preventiva"}},
	{"penhora", []string{"penhora", "bloqueio de valores", "bacenjud"}},
	{"acordo", []string{"acordo", "homologação de acordo", "conciliação"}},
	{"absolvição", []string{"absolvição", "absolvido", "improcedente"}},
	{"arquivamento", []string{"arquivamento", "arquivado", "baixa definitiva"}},
	{"citação", []string{"citação", "citado"}},
	{"distribuição", []string{"distribuição", "distribuído"}},
}

// MainAction scans a record's movements against the fixed priority list
// and returns the first matching tag. Returns ("", false) when nothing
// matches.
func MainAction(movements []string) (string, bool) {
	if len(movements) == 0 {
		return "", false
	}
	joined := strings.ToLower(strings.Join(movements, " | "))
	for _, m := range actionMatchers {
		for _, kw := range m.keywords {
			if strings.Contains(joined, kw) {
				return m.tag, true
			}
		}
	}
	return "", false
}

// FormatForNarrative renders a search result as plain text suitable for a
// synthesis prompt. It carries no PII beyond what the records themselves
// state; the caller redacts before prompting.
func FormatForNarrative(result *Result) string {
	if result == nil {
		return "Nenhum dado judicial disponível."
	}

	var b strings.Builder
	if result.InvolvedParty != "" {
		fmt.Fprintf(&b, "Parte envolvida: %s\n", result.InvolvedParty)
	}
	fmt.Fprintf(&b, "Total de processos: %d\n", result.TotalCount)

	for i, r := range result.Records {
		fmt.Fprintf(&b, "\nProcesso %d: %s\n", i+1, r.CaseNumber)
		if r.Category != "" {
			fmt.Fprintf(&b, "  Classe: %s\n", r.Category)
		}
		if r.Subject != "" {
			fmt.Fprintf(&b, "  Assunto: %s\n", r.Subject)
		}
		if r.Court != "" || r.Region != "" {
			fmt.Fprintf(&b, "  Órgão: %s (%s)\n", r.Court, r.Region)
		}
		if r.Role != "" {
			fmt.Fprintf(&b, "  Papel: %s\n", r.Role)
		}
		if !r.StartDate.IsZero() {
			fmt.Fprintf(&b, "  Ajuizamento: %s\n", r.StartDate.Format("2006-01-02"))
		}
		if action, ok := MainAction(r.Movements); ok {
			fmt.Fprintf(&b, "  Resultado principal: %s\n", action)
		}
	}

	return b.String()
}
