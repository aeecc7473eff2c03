package embedding

import (
	"hash/fnv"
	"regexp"
	"strings"
)

// wordPattern matches letter/digit runs, keeping inner apostrophes ("don't").
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’]\p{L}+)*`)

// stopwords are frequent Portuguese and English function words that carry no topic.
var stopwords = toSet(
	// pt
	"a", "o", "as", "os", "um", "uma", "uns", "umas", "de", "do", "da", "dos", "das",
	"em", "no", "na", "nos", "nas", "por", "para", "com", "sem", "que", "qual", "quais",
	"e", "ou", "se", "é", "são", "ser", "foi", "como", "mais", "menos", "ao", "aos",
	"à", "às", "este", "esta", "isso", "isto", "esse", "essa", "pelo", "pela",
	// en
	"the", "an", "of", "to", "in", "on", "for", "with", "and", "or", "is", "are",
	"be", "was", "were", "by", "as", "at", "it", "this", "that", "these", "those",
	"from", "what", "which", "how",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Words returns the lowercased word tokens of text.
func Words(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// ContentWords returns Words(text) without stopwords.
func ContentWords(text string) []string {
	words := Words(text)
	out := words[:0]
	for _, w := range words {
		if _, stop := stopwords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

// IsStopword reports whether w (lowercase) is a stopword.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

// HashString returns a deterministic 64-bit FNV-1a hash of s.
func HashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer maps words to hashed vocabulary ids. It lets an exported model run
// without a vocabulary file; accuracy is lower than with the model's own WordPiece vocabulary.
type SimpleTokenizer struct{}

const (
	clsToken  = 101
	sepToken  = 102
	vocabSize = 30000
	// firstVocabID skips the special token range of BERT vocabularies.
	firstVocabID = 1000
)

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 2 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsToken
	attentionMask[0] = 1

	pos := 1
	for _, word := range Words(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(firstVocabID + HashString(word)%(vocabSize-firstVocabID))
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = sepToken
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}
