package tokenizer

import (
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	kagome "github.com/ikawaha/kagome/v2/tokenizer"
)

// JapaneseSegmenter splits Japanese runs into morphemes with kagome so that
// particles become separate (and droppable) tokens. Text without kana or
// kanji passes through unchanged.
type JapaneseSegmenter struct {
	t *kagome.Tokenizer
}

// NewJapaneseSegmenter loads the IPA dictionary.
func NewJapaneseSegmenter() (*JapaneseSegmenter, error) {
	t, err := kagome.New(ipa.Dict(), kagome.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &JapaneseSegmenter{t: t}, nil
}

func (s *JapaneseSegmenter) Segment(text string) string {
	if !containsJapanese(text) {
		return text
	}
	return strings.Join(s.t.Wakati(text), " ")
}

func containsJapanese(text string) bool {
	for _, r := range text {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return true
		}
	}
	return false
}
