package ranking

import "strings"

const (
	maxSuggestions      = 5
	maxRelatedConcepts  = 3
	suggestionTopTexts  = 3
	suggestionTextChars = 200
)

// Suggestions proposes follow-up questions for q. texts are the result passages in
// rank order; the head of the first few is scanned for known concepts the query
// did not mention.
func (qa *QueryAnalyzer) Suggestions(q *AnalyzedQuery, texts []string) []string {
	var out []string

	if len(texts) > 0 {
		heads := make([]string, 0, suggestionTopTexts)
		for i, t := range texts {
			if i == suggestionTopTexts {
				break
			}
			heads = append(heads, headOf(t, suggestionTextChars))
		}
		scanned := padded(Normalize(strings.Join(heads, " ")))

		used := make(map[string]bool, len(q.DetectedConcepts))
		for _, c := range q.DetectedConcepts {
			used[c] = true
		}
		related := 0
		for _, c := range qa.tables.Concepts {
			if related == maxRelatedConcepts {
				break
			}
			phrase := conceptPhrase(c)
			if used[c] || !containsPhrase(scanned, phrase) {
				continue
			}
			out = append(out, "Como funciona "+phrase+"?", "Implementação de "+phrase)
			related++
		}
	}

	switch {
	case q.Type == QueryTypeConcept && len(q.DetectedConcepts) > 0:
		c := conceptPhrase(q.DetectedConcepts[0])
		out = append(out,
			"Como implementar "+c,
			"Exemplo prático de "+c,
			"Parâmetros para "+c)
	case q.Type == QueryTypeAlgorithm:
		out = append(out,
			"Vantagens e desvantagens do algoritmo",
			"Comparação com outros métodos",
			"Implementação passo a passo")
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// headOf returns at most n runes from the start of s.
func headOf(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
