// Package tokenizer extracts search terms from help content and queries.
// It lower-cases input, strips everything except letters, digits and
// whitespace (CJK scripts included), drops one-rune tokens and per-language
// stop words, and de-duplicates the result.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTermLength = 2

// Segmenter inserts word boundaries (spaces) into text written in scripts
// that do not separate words with whitespace.
type Segmenter interface {
	Segment(text string) string
}

// Tokenizer turns text into a de-duplicated set of normalised terms.
// It is safe for concurrent use once constructed.
type Tokenizer struct {
	stopWords map[string]map[string]struct{}
	anyStop   map[string]struct{}
	segmenter Segmenter
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithSegmenter runs s over the raw text before normalisation.
func WithSegmenter(s Segmenter) Option {
	return func(t *Tokenizer) {
		t.segmenter = s
	}
}

// New builds a Tokenizer from per-language stop-word lists.
func New(stopWords map[string][]string, opts ...Option) *Tokenizer {
	t := &Tokenizer{
		stopWords: make(map[string]map[string]struct{}, len(stopWords)),
		anyStop:   make(map[string]struct{}),
	}
	for lang, words := range stopWords {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(w)
			set[w] = struct{}{}
			t.anyStop[w] = struct{}{}
		}
		t.stopWords[lang] = set
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ExtractTerms returns the distinct terms of text in first-occurrence order.
// Stop words are taken from language's list; a language without its own list
// uses the union of all configured lists.
func (t *Tokenizer) ExtractTerms(text string, language string) []string {
	if text == "" {
		return nil
	}
	if t.segmenter != nil {
		text = t.segmenter.Segment(text)
	}
	stop, ok := t.stopWords[language]
	if !ok {
		stop = t.anyStop
	}

	words := strings.Fields(Normalize(text))
	seen := make(map[string]struct{}, len(words))
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) < minTermLength {
			continue
		}
		if _, isStop := stop[word]; isStop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		terms = append(terms, word)
	}
	return terms
}

// IsStopWord reports whether word is a stop word for language.
func (t *Tokenizer) IsStopWord(word string, language string) bool {
	stop, ok := t.stopWords[language]
	if !ok {
		stop = t.anyStop
	}
	_, isStop := stop[strings.ToLower(word)]
	return isStop
}

// Normalize lower-cases text, deletes every rune that is not a letter,
// digit, combining mark or whitespace, and maps whitespace to a single
// ASCII space.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
