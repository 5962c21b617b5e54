// Package analytics derives cheap text features from a cart summary:
// dominant keywords and the page language.
package analytics

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/pemistahl/lingua-go"
)

type Analytics struct{}

// commonWords are ignored in frequency analysis: English stopwords plus the
// boilerplate every cart page repeats.
var commonWords = map[string]struct{}{
	"a": {}, "about": {}, "all": {}, "an": {}, "and": {}, "any": {}, "are": {},
	"as": {}, "at": {}, "be": {}, "by": {}, "can": {}, "do": {}, "for": {},
	"from": {}, "has": {}, "have": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "its": {}, "more": {}, "my": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "our": {}, "so": {}, "than": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "up": {}, "was": {}, "we": {}, "will": {}, "with": {},
	"you": {}, "your": {},

	// Cart and checkout boilerplate
	"add": {}, "added": {}, "cart": {}, "checkout": {}, "delete": {}, "each": {},
	"item": {}, "items": {}, "later": {}, "price": {}, "proceed": {}, "qty": {},
	"quantity": {}, "remove": {}, "save": {}, "shipping": {}, "stock": {},
	"subtotal": {}, "total": {}, "gift": {}, "free": {}, "delivery": {},
	"span": {}, "img": {}, "alt": {}, "title": {}, "aria-label": {}, "li": {},
	"strong": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {},
}

// IsStopword checks if a word is a common stopword that should be filtered out.
func IsStopword(word string) bool {
	_, exists := commonWords[strings.ToLower(word)]
	return exists
}

func (a *Analytics) WordFrequency(text string) map[string]int {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-'
	})
	frequencies := make(map[string]int)

	for _, word := range words {
		word = strings.Trim(word, "-")
		if len([]rune(word)) < 3 {
			continue
		}
		if _, exists := commonWords[word]; exists {
			continue
		}
		frequencies[word]++
	}

	return frequencies
}

type wordCount struct {
	Word  string
	Count int
}

// TopNWords returns the n most frequent words, ties broken alphabetically so
// the result is stable.
func (a *Analytics) TopNWords(text string, n int) []string {
	frequencies := a.WordFrequency(text)

	counts := make([]wordCount, 0, len(frequencies))
	for k, v := range frequencies {
		counts = append(counts, wordCount{k, v})
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Word < counts[j].Word
	})

	limit := n
	if len(counts) < n {
		limit = len(counts)
	}

	topN := make([]string, limit)
	for i := 0; i < limit; i++ {
		topN[i] = counts[i].Word
	}

	return topN
}

// Languages the detector distinguishes between. Limiting the set keeps the
// models small and the answers stable on short texts.
var supportedLanguages = []lingua.Language{
	lingua.English, lingua.Spanish, lingua.French, lingua.German,
	lingua.Italian, lingua.Portuguese, lingua.Dutch, lingua.Japanese,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func languageDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(supportedLanguages...).
			WithMinimumRelativeDistance(0.1).
			Build()
	})
	return detector
}

// Language returns the ISO 639-1 code of text and the detector's confidence,
// or "" when the text is too short or ambiguous.
func (a *Analytics) Language(text string) (string, float64) {
	if len(strings.Fields(text)) < 3 {
		return "", 0
	}
	lang, ok := languageDetector().DetectLanguageOf(text)
	if !ok {
		return "", 0
	}
	confidence := languageDetector().ComputeLanguageConfidence(text, lang)
	return strings.ToLower(lang.IsoCode639_1().String()), confidence
}
