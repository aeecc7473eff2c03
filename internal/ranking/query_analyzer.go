package ranking

import (
	"strings"
	"unicode"

	"github.com/hyperjump/bookref/internal/config"
	"github.com/hyperjump/bookref/pkg/utils"
)

type queryRule struct {
	typ      QueryType
	patterns []string
}

type synonymEntry struct {
	term    string
	related []string
}

type concept struct {
	name   string // as declared, e.g. "filtro-gaussiano"
	phrase string // as matched, e.g. "filtro gaussiano"
}

// QueryAnalyzer classifies and expands queries using the shared vocabulary tables.
// It is safe for concurrent use; nothing is mutated after construction.
type QueryAnalyzer struct {
	tables   *config.Tables
	cfg      config.RetrievalConfig
	rules    []queryRule
	synonyms []synonymEntry
	concepts []concept
}

// NewQueryAnalyzer creates an analyzer over tables. A nil cfg uses the default
// retrieval settings.
func NewQueryAnalyzer(tables *config.Tables, cfg *config.RetrievalConfig) *QueryAnalyzer {
	if tables == nil {
		tables = config.DefaultTables()
	}
	qa := &QueryAnalyzer{tables: tables}
	if cfg != nil {
		qa.cfg = *cfg
	} else {
		qa.cfg = config.Default().Retrieval
	}

	for _, r := range tables.QueryRules {
		rule := queryRule{typ: QueryType(r.Type)}
		for _, p := range r.Patterns {
			if n := Normalize(p); n != "" {
				rule.patterns = append(rule.patterns, n)
			}
		}
		qa.rules = append(qa.rules, rule)
	}
	for _, s := range tables.Synonyms {
		e := synonymEntry{term: Normalize(s.Term)}
		for _, r := range s.Related {
			if n := Normalize(r); n != "" {
				e.related = append(e.related, n)
			}
		}
		qa.synonyms = append(qa.synonyms, e)
	}
	seen := make(map[string]bool)
	for _, c := range tables.Concepts {
		phrase := conceptPhrase(c)
		if phrase == "" || seen[phrase] {
			continue
		}
		seen[phrase] = true
		qa.concepts = append(qa.concepts, concept{name: c, phrase: phrase})
	}
	// Synonym terms count as concepts too, so "dropout" or "pooling" is detected
	// even when only its related phrasing appears.
	for _, s := range qa.synonyms {
		if !seen[s.term] {
			seen[s.term] = true
			qa.concepts = append(qa.concepts, concept{name: s.term, phrase: s.term})
		}
	}
	return qa
}

// Normalize lowercases s, replaces every character that is not a letter, digit,
// underscore or hyphen with a space, and collapses whitespace.
func Normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// conceptPhrase is the matching form of a concept name: normalized, with
// hyphens and underscores read as spaces.
func conceptPhrase(name string) string {
	return Normalize(strings.NewReplacer("-", " ", "_", " ").Replace(name))
}

// padded wraps a normalized string in spaces so phrase matches fall on word boundaries.
func padded(s string) string {
	return " " + s + " "
}

func containsPhrase(paddedText, phrase string) bool {
	return phrase != "" && strings.Contains(paddedText, " "+phrase+" ")
}

// containsWordPrefix reports whether phrase starts at a word boundary of paddedText,
// so inflected forms ("filtros") match but words merely containing it ("parede") do not.
func containsWordPrefix(paddedText, phrase string) bool {
	return phrase != "" && strings.Contains(paddedText, " "+phrase)
}

// Analyze derives an AnalyzedQuery from raw. explicitFilter, when set, overrides
// the suggested book. raw is expected to be validated already.
func (qa *QueryAnalyzer) Analyze(raw string, topK int, explicitFilter string) *AnalyzedQuery {
	q := &AnalyzedQuery{
		Original:   strings.TrimSpace(raw),
		TopK:       topK,
		Type:       QueryTypeGeneric,
		BookFilter: strings.TrimSpace(explicitFilter),
	}
	q.Normalized = Normalize(q.Original)
	text := padded(q.Normalized)

	pattern := qa.classify(q, text)
	matched := qa.matchSynonyms(text)
	qa.expand(q, matched)
	q.DetectedConcepts = qa.detectConcepts(q.Normalized, matched)
	q.SuggestedBook = qa.suggestBook(q.Normalized)
	if q.BookFilter != "" {
		q.FilterExplicit = true
	} else {
		q.BookFilter = q.SuggestedBook
	}

	q.Threshold, q.RelaxedThreshold = qa.threshold(q.Type, contentWords(text, pattern))
	q.Confidence = confidence(q)
	return q
}

// classify sets q.Type from the first rule with a matching pattern and returns
// that pattern.
func (qa *QueryAnalyzer) classify(q *AnalyzedQuery, text string) string {
	for _, r := range qa.rules {
		for _, p := range r.patterns {
			if containsPhrase(text, p) {
				q.Type = r.typ
				return p
			}
		}
	}
	return ""
}

// contentWords counts the words of the query outside the pattern that set its type,
// so "o que é convolução" is a one-word question.
func contentWords(text, pattern string) int {
	if pattern != "" {
		text = strings.Replace(text, " "+pattern+" ", " ", 1)
	}
	return len(strings.Fields(text))
}

// matchSynonyms returns the synonym entries whose term or any related phrase
// occurs in text, in table order.
func (qa *QueryAnalyzer) matchSynonyms(text string) []synonymEntry {
	var matched []synonymEntry
	for _, s := range qa.synonyms {
		if containsPhrase(text, s.term) {
			matched = append(matched, s)
			continue
		}
		for _, r := range s.related {
			if containsPhrase(text, r) {
				matched = append(matched, s)
				break
			}
		}
	}
	return matched
}

func (qa *QueryAnalyzer) expand(q *AnalyzedQuery, matched []synonymEntry) {
	terms := make([]string, 0, 8)
	seen := make(map[string]bool)
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	for _, w := range strings.Fields(q.Normalized) {
		add(w)
	}
	for _, m := range matched {
		add(m.term)
	}
	for _, m := range matched {
		for _, r := range m.related {
			add(r)
		}
	}
	q.ExpandedTerms = terms

	present := make(map[string]bool)
	for _, w := range strings.Fields(q.Normalized) {
		present[w] = true
	}
	var extra []string
	for _, m := range matched {
		related := m.related
		if len(related) > qa.cfg.SynonymsPerTerm {
			related = related[:qa.cfg.SynonymsPerTerm]
		}
		for _, r := range related {
			words := strings.Fields(r)
			if allPresent(words, present) {
				continue
			}
			for _, w := range words {
				present[w] = true
			}
			extra = append(extra, r)
		}
	}

	q.EmbeddingText = q.Original
	if len(extra) == 0 || len(q.Original) >= qa.cfg.MaxExpansionChars {
		return
	}
	q.EmbeddingText = utils.CapAtWord(q.Original+" "+strings.Join(extra, " "), qa.cfg.MaxExpansionChars)
}

func allPresent(words []string, present map[string]bool) bool {
	for _, w := range words {
		if !present[w] {
			return false
		}
	}
	return true
}

// detectConcepts returns the known concepts mentioned in the normalized query, in
// table order. Hyphenated forms in the query match too, and a synonym term counts
// when only one of its related phrases was used.
func (qa *QueryAnalyzer) detectConcepts(normalized string, matched []synonymEntry) []string {
	text := padded(normalized)
	dehyphenated := padded(conceptPhrase(normalized))
	viaSynonym := make(map[string]bool, len(matched))
	for _, m := range matched {
		viaSynonym[m.term] = true
	}
	out := []string{}
	for _, c := range qa.concepts {
		if viaSynonym[c.phrase] || containsPhrase(text, c.phrase) || containsPhrase(dehyphenated, c.phrase) {
			out = append(out, c.name)
		}
	}
	return out
}

// suggestBook scores every catalog profile by the concepts and keywords the query
// mentions. Terms match at word starts. Ties keep the earlier profile; a zero score
// suggests nothing.
func (qa *QueryAnalyzer) suggestBook(normalized string) string {
	text := padded(normalized)
	dehyphenated := padded(conceptPhrase(normalized))
	mentions := func(term string) bool {
		return containsWordPrefix(text, Normalize(term)) || containsWordPrefix(dehyphenated, conceptPhrase(term))
	}
	best, bestScore := "", 0.0
	for _, b := range qa.tables.Books {
		score := 0.0
		for _, c := range b.Concepts {
			if mentions(c) {
				score += qa.tables.ConceptWeight
			}
		}
		for _, k := range b.Keywords {
			if mentions(k) {
				score += qa.tables.KeywordWeight
			}
		}
		if score > bestScore {
			best, bestScore = b.Code, score
		}
	}
	return best
}

// threshold returns the adapted and the relaxed similarity threshold.
func (qa *QueryAnalyzer) threshold(typ QueryType, words int) (float64, float64) {
	t := qa.cfg.SimilarityThreshold
	if typ == QueryTypeGeneric || words < qa.cfg.ShortQueryWords {
		t -= qa.cfg.GenericMargin
	}
	if typ == QueryTypeComparison {
		t += qa.cfg.ComparisonRaise
	}
	t = utils.Clamp01(t)
	return t, utils.Clamp01(t - qa.cfg.RelaxStep)
}

func confidence(q *AnalyzedQuery) float64 {
	c := 0.5
	if q.Type != QueryTypeGeneric {
		c += 0.2
	}
	c += min(0.1*float64(len(q.DetectedConcepts)), 0.3)
	return c
}
