package migration

import (
	"strings"
	"unicode"

	"github.com/m-mizutani/dreamlog/pkg/model"
	"golang.org/x/text/cases"
)

const classifyWordLimit = 50

// turkishLetters never occur in English text.
const turkishLetters = "çÇğĞıİöÖşŞüÜ"

var turkishStopWords = map[string]struct{}{
	"ve": {}, "bir": {}, "bu": {}, "da": {}, "de": {}, "ile": {}, "ama": {},
	"gibi": {}, "icin": {}, "için": {}, "cok": {}, "çok": {}, "ben": {}, "sen": {},
	"ne": {}, "mi": {}, "ki": {}, "daha": {}, "sonra": {}, "olan": {},
	"ruya": {}, "rüya": {}, "ruyamda": {}, "rüyamda": {}, "gordum": {}, "gördüm": {},
	"vardi": {}, "vardı": {}, "bana": {}, "beni": {},
}

// Classify guesses whether text is Turkish or English. It is a heuristic:
// any Turkish-only letter decides immediately, otherwise two stop-word hits
// among the first words are required.
func Classify(text string) model.Lang {
	if strings.ContainsAny(text, turkishLetters) {
		return model.LangTurkish
	}

	// ASCII "I" must fold to "i", never to dotless "ı".
	words := strings.Fields(cases.Fold().String(text))
	if len(words) > classifyWordLimit {
		words = words[:classifyWordLimit]
	}

	hits := 0
	for _, w := range words {
		w = strings.TrimFunc(w, unicode.IsPunct)
		if _, ok := turkishStopWords[w]; ok {
			hits++
			if hits >= 2 {
				return model.LangTurkish
			}
		}
	}
	return model.LangEnglish
}
