// Package classify assigns each web search result a category, a trust
// tier, an identity-match score, and a three-way accepted/weak/rejected
// disposition.
package classify

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/vetta-research/dossier-cli/internal/model"
)

// BaseProfile is what is known about the target entity before web evidence
// is weighed: the normalized query name plus anchors resolved from judicial
// records.
type BaseProfile struct {
	NormalizedName string
	Regions        []string
	Cities         []string
	Organizations  []string
}

// blockedDomains are low-value hosts rejected before any scoring.
var blockedDomains = []string{
	"scribd.com",
	"slideshare.net",
	"docplayer.com.br",
	"4shared.com",
	"mediafire.com",
	"pt.scribd.com",
	"issuu.com",
	"vdocuments.mx",
	"studocu.com",
	"passei.direto",
	"forum.adrenaline.com.br",
	"hardmob.com.br",
	"reclameaqui.com.br/forum",
}

// blockedTitlePattern matches obvious spam or aggregator titles.
var blockedTitlePattern = regexp.MustCompile(`(?i)(baixar gr[áa]tis|download pdf|lista telef[ôo]nica|quem [ée] do n[úu]mero|consulta gr[áa]tis de)`)

// genericPDFPattern matches direct links to anonymous PDF dumps.
var genericPDFPattern = regexp.MustCompile(`(?i)/(uploads?|files?|docs?|anexos?)/[^/]+\.pdf$`)

// categoryMatcher ties a category to its domain/path heuristic. Matchers
// run in priority order; the first hit wins.
type categoryMatcher struct {
	category model.SourceCategory
	match    func(host, path string) bool
}

var courtHostPattern = regexp.MustCompile(`(^|\.)(tj[a-z]{2}|trf\d|tst|stj|stf|trt\d{1,2})\.`)

// socialPlatforms are the recognized social networks, matched per platform
// so the disposition reasons record which one the source came from.
var socialPlatforms = []string{"instagram.com", "facebook.com", "twitter.com", "x.com", "tiktok.com", "youtube.com"}

// socialPlatform returns the matched platform domain, or "" for none.
func socialPlatform(host string) string {
	for _, d := range socialPlatforms {
		if strings.Contains(host, d) {
			return d
		}
	}
	return ""
}

var categoryMatchers = []categoryMatcher{
	{model.CategoryJudicial, func(host, path string) bool {
		return strings.HasSuffix(host, ".jus.br") || courtHostPattern.MatchString(host)
	}},
	{model.CategoryGovernment, func(host, path string) bool {
		return strings.HasSuffix(host, ".gov.br") || strings.HasSuffix(host, ".leg.br") || strings.HasSuffix(host, ".mp.br")
	}},
	{model.CategoryProfessionalNetwork, func(host, path string) bool {
		return strings.Contains(host, "linkedin.com")
	}},
	{model.CategoryAcademic, func(host, path string) bool {
		return strings.Contains(host, "lattes.cnpq.br") ||
			strings.Contains(host, "scielo") ||
			strings.Contains(host, "scholar.google") ||
			strings.HasSuffix(host, ".edu.br")
	}},
	{model.CategoryLargeMedia, func(host, path string) bool {
		for _, d := range []string{"globo.com", "g1.globo.com", "folha.uol.com.br", "estadao.com.br", "uol.com.br", "cnnbrasil.com.br", "bbc.com"} {
			if strings.HasSuffix(host, d) {
				return true
			}
		}
		return false
	}},
	{model.CategoryGeneralMedia, func(host, path string) bool {
		return strings.Contains(host, "noticias") ||
			strings.Contains(path, "/noticia") ||
			strings.Contains(host, "jornal") ||
			strings.Contains(host, "diario")
	}},
	{model.CategorySocialNetwork, func(host, path string) bool {
		return socialPlatform(host) != ""
	}},
	{model.CategoryBusinessRegistry, func(host, path string) bool {
		for _, d := range []string{"cnpj.biz", "econodata.com.br", "casadosdados.com.br", "empresascnpj.com", "consultacnpj"} {
			if strings.Contains(host, d) {
				return true
			}
		}
		return false
	}},
}

// trustByCategory is the fixed category → trust tier lookup. Judicial and
// government sources are always very-high.
var trustByCategory = map[model.SourceCategory]model.TrustTier{
	model.CategoryJudicial:            model.TrustVeryHigh,
	model.CategoryGovernment:          model.TrustVeryHigh,
	model.CategoryProfessionalNetwork: model.TrustHigh,
	model.CategoryAcademic:            model.TrustHigh,
	model.CategoryLargeMedia:          model.TrustMedium,
	model.CategoryGeneralMedia:        model.TrustLow,
	model.CategorySocialNetwork:       model.TrustLow,
	model.CategoryBusinessRegistry:    model.TrustMedium,
	model.CategoryOther:               model.TrustVeryLow,
}

// Classify runs the six classification steps in fixed order: blocklist,
// category, trust, identity match, status decision, weight. The returned
// source is never mutated afterward except to attach fetched text.
func Classify(raw model.EvidenceSource, profile BaseProfile) model.EvidenceSource {
	src := raw

	host, path := hostAndPath(src.URL)

	// 1. Blocklist short-circuit.
	if reason, blocked := blockReason(host, path, src.Title); blocked {
		src.Category = model.CategoryOther
		src.Trust = model.TrustVeryLow
		src.Status = model.StatusRejected
		src.Weight = 0
		src.Reasons = append(src.Reasons, reason)
		return src
	}

	// 2. Category: first matcher wins.
	src.Category = model.CategoryOther
	for _, m := range categoryMatchers {
		if m.match(host, path) {
			src.Category = m.category
			break
		}
	}
	if src.Category == model.CategorySocialNetwork {
		src.Reasons = append(src.Reasons, "social platform: "+socialPlatform(host))
	}

	// 3. Trust tier.
	src.Trust = trustByCategory[src.Category]

	// 4. Identity-match score.
	src.MatchScore = identityMatchScore(src, profile, &src.Reasons)

	// 5. Status decision.
	src.Status = decideStatus(src.Category, src.Trust, src.MatchScore, &src.Reasons)

	// 6. Weight.
	src.Weight = 0.6*src.Trust.Weight() + 0.4*src.MatchScore
	if src.Status == model.StatusRejected {
		src.Weight = 0
	}

	return src
}

func hostAndPath(rawURL string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL), ""
	}
	return strings.ToLower(u.Hostname()), strings.ToLower(u.Path)
}

func blockReason(host, path, title string) (string, bool) {
	for _, d := range blockedDomains {
		if strings.Contains(host+path, d) {
			return "blocked domain: " + d, true
		}
	}
	if genericPDFPattern.MatchString(path) {
		return "generic pdf link", true
	}
	if blockedTitlePattern.MatchString(title) {
		return "spam title pattern", true
	}
	return "", false
}

// identityMatchScore is a weighted sum capped at 1.0: full name 0.4 (or
// 0.2 for a first+last partial), known region 0.3, known city 0.2, known
// organization 0.1.
func identityMatchScore(src model.EvidenceSource, profile BaseProfile, reasons *[]string) float64 {
	text := model.NormalizeForComparison(src.Title + " " + src.Snippet + " " + src.URL)
	score := 0.0

	if profile.NormalizedName != "" {
		switch {
		case strings.Contains(text, profile.NormalizedName):
			score += 0.4
			*reasons = append(*reasons, "full name present")
		case firstLastMatch(text, profile.NormalizedName):
			score += 0.2
			*reasons = append(*reasons, "partial name match (first+last)")
		}
	}

	if containsAny(text, profile.Regions, regionToken) {
		score += 0.3
		*reasons = append(*reasons, "known region present")
	}
	if containsAny(text, profile.Cities, model.NormalizeForComparison) {
		score += 0.2
		*reasons = append(*reasons, "known city present")
	}
	if containsAny(text, profile.Organizations, model.NormalizeForComparison) {
		score += 0.1
		*reasons = append(*reasons, "known organization present")
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// regionToken lowers a UF code for whole-word matching.
func regionToken(region string) string {
	return strings.ToLower(strings.TrimSpace(region))
}

func containsAny(text string, values []string, normalize func(string) string) bool {
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if containsWord(text, n) {
			return true
		}
	}
	return false
}

// containsWord does a word-boundary-aware substring check so a UF code
// like "rs" does not match inside unrelated words.
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// firstLastMatch checks whether both the first and the last token of the
// normalized name appear in the text.
func firstLastMatch(text, normalizedName string) bool {
	parts := model.NameParts(normalizedName)
	if len(parts) < 2 {
		return false
	}
	return containsWord(text, parts[0]) && containsWord(text, parts[len(parts)-1])
}

// decideStatus applies the fixed acceptance policy.
func decideStatus(cat model.SourceCategory, trust model.TrustTier, match float64, reasons *[]string) model.SourceStatus {
	switch {
	case cat == model.CategoryJudicial || cat == model.CategoryGovernment:
		*reasons = append(*reasons, "official source accepted unconditionally")
		return model.StatusAccepted
	case (trust == model.TrustVeryHigh || trust == model.TrustHigh) && match >= 0.3:
		*reasons = append(*reasons, "high trust with sufficient identity match")
		return model.StatusAccepted
	case trust == model.TrustMedium && match >= 0.5:
		*reasons = append(*reasons, "medium trust with strong identity match")
		return model.StatusAccepted
	case cat == model.CategoryProfessionalNetwork && match >= 0.2:
		*reasons = append(*reasons, "professional network with minimal identity match")
		return model.StatusAccepted
	case cat == model.CategoryLargeMedia && match >= 0.4:
		*reasons = append(*reasons, "large media with solid identity match")
		return model.StatusAccepted
	case match >= 0.3 && match < 0.5:
		*reasons = append(*reasons, "identity match in weak-signal band")
		return model.StatusWeakSignal
	case trust == model.TrustMedium && match >= 0.2:
		*reasons = append(*reasons, "medium trust with borderline identity match")
		return model.StatusWeakSignal
	default:
		*reasons = append(*reasons, fmt.Sprintf("insufficient trust/match (%s, %.2f)", trust, match))
		return model.StatusRejected
	}
}
