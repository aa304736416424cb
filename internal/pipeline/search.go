package pipeline

import "fmt"

// adaptiveQueries builds the extra search queries issued when the
// judicial anchor is missing and the evidence base is thin. Each query
// targets a different source category so the classifier has more than
// general media to work with.
func adaptiveQueries(name string) []string {
	return []string{
		fmt.Sprintf("%q notícias", name),
		fmt.Sprintf("%q CNPJ sócio empresa", name),
		fmt.Sprintf("%q site:lattes.cnpq.br OR site:scielo.br", name),
		fmt.Sprintf("%q site:gov.br", name),
	}
}
