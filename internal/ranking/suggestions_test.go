package ranking

import (
	"reflect"
	"testing"
)

func TestQueryAnalyzer_Suggestions(t *testing.T) {
	qa := newAnalyzer()

	t.Run("related concepts first", func(t *testing.T) {
		q := qa.Analyze("o que é convolução", 5, "")
		texts := []string{
			"O filtro gaussiano suaviza a imagem antes de calcular o histograma.",
			"A limiarização de Otsu usa a convolução apenas indiretamente.",
			"Texto sem conceitos.",
			"O operador de Sobel aparece só no quarto resultado.",
		}
		want := []string{
			"Como funciona filtro gaussiano?",
			"Implementação de filtro gaussiano",
			"Como funciona histograma?",
			"Implementação de histograma",
			"Como funciona limiarização?",
		}
		if got := qa.Suggestions(q, texts); !reflect.DeepEqual(got, want) {
			t.Errorf("Suggestions = %v, want %v", got, want)
		}
	})

	t.Run("concept query", func(t *testing.T) {
		q := qa.Analyze("o que é convolução", 5, "")
		want := []string{
			"Como implementar convolução",
			"Exemplo prático de convolução",
			"Parâmetros para convolução",
		}
		got := qa.Suggestions(q, []string{"A convolução desliza um kernel sobre a imagem."})
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Suggestions = %v, want %v", got, want)
		}
	})

	t.Run("algorithm query", func(t *testing.T) {
		q := qa.Analyze("como funciona o método de otsu", 5, "")
		if q.Type != QueryTypeAlgorithm {
			t.Fatalf("Type = %s", q.Type)
		}
		got := qa.Suggestions(q, nil)
		if len(got) != 3 || got[0] != "Vantagens e desvantagens do algoritmo" {
			t.Errorf("Suggestions = %v", got)
		}
	})

	t.Run("generic without results", func(t *testing.T) {
		q := qa.Analyze("tamanho de arquivo", 5, "")
		if got := qa.Suggestions(q, nil); len(got) != 0 {
			t.Errorf("Suggestions = %v", got)
		}
	})
}

func TestHeadOf(t *testing.T) {
	if got := headOf("convolução", 9); got != "convoluçã" {
		t.Errorf("headOf = %q", got)
	}
	if got := headOf("abc", 10); got != "abc" {
		t.Errorf("headOf = %q", got)
	}
}
