package ranking

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/bookref/internal/models"
)

// OtherCategory collects concepts that no category marker matches.
const OtherCategory = "Outros"

const maxConceptSuggestions = 3

// Category returns the first category whose markers occur in name, or OtherCategory.
func (qa *QueryAnalyzer) Category(name string) string {
	lower := strings.ToLower(name)
	for _, c := range qa.tables.Categories {
		for _, m := range c.Markers {
			if strings.Contains(lower, strings.ToLower(m)) {
				return c.Name
			}
		}
	}
	return OtherCategory
}

// ListConcepts returns the declared concepts grouped by category, in category
// order with OtherCategory last. Empty groups are left out.
func (qa *QueryAnalyzer) ListConcepts() []models.ConceptGroup {
	byCategory := make(map[string][]string)
	for _, c := range qa.tables.Concepts {
		cat := qa.Category(c)
		byCategory[cat] = append(byCategory[cat], c)
	}

	groups := make([]models.ConceptGroup, 0, len(qa.tables.Categories)+1)
	for _, c := range qa.tables.Categories {
		if names := byCategory[c.Name]; len(names) > 0 {
			groups = append(groups, models.ConceptGroup{Category: c.Name, Concepts: names})
			delete(byCategory, c.Name)
		}
	}
	if names := byCategory[OtherCategory]; len(names) > 0 {
		groups = append(groups, models.ConceptGroup{Category: OtherCategory, Concepts: names})
	}
	return groups
}

// ResolveConcept maps a user-supplied name ("Filtro_Gaussiano", "filtro gaussiano")
// to a known concept and its matching phrase. Unknown names give an
// *models.UnknownConceptError with up to three close matches.
func (qa *QueryAnalyzer) ResolveConcept(name string) (known, phrase string, err error) {
	want := conceptPhrase(name)
	if want == "" {
		return "", "", &models.ParamError{Field: "name", Reason: "concept name is empty"}
	}
	for _, c := range qa.concepts {
		if c.phrase == want {
			return c.name, c.phrase, nil
		}
	}
	return "", "", &models.UnknownConceptError{Name: name, Suggestions: qa.closestConcepts(want)}
}

// closestConcepts ranks known concepts by edit distance to phrase. Only matches
// within a third of the name's length (at least 2 edits) are kept.
func (qa *QueryAnalyzer) closestConcepts(phrase string) []string {
	limit := max(2, utf8.RuneCountInString(phrase)/3)
	type candidate struct {
		name string
		dist int
		pos  int
	}
	var cands []candidate
	for i, c := range qa.concepts {
		d := EditDistance(phrase, c.phrase)
		if strings.HasPrefix(c.phrase, phrase) && d > limit {
			d = limit
		}
		if d <= limit {
			cands = append(cands, candidate{name: c.name, dist: d, pos: i})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].pos < cands[j].pos
	})
	out := make([]string, 0, maxConceptSuggestions)
	for _, c := range cands {
		if len(out) == maxConceptSuggestions {
			break
		}
		out = append(out, c.name)
	}
	return out
}

// ConceptQuery is the retrieval query used to look up reference material for a concept.
func ConceptQuery(phrase string) string {
	return "definição conceito " + phrase + " explicação teoria"
}
