// Package services – text obscuring.
//
// blurText produces the degraded projection of gated content shown to viewers
// without a grant. It is a display-layer privacy heuristic, not redaction:
// word count, word lengths, and short tokens leak through on purpose so the
// page layout stays recognizable.
package services

import (
	"math/rand"
	"strings"
)

// blurGlyphs is the fixed obfuscation alphabet.
var blurGlyphs = []rune{'█', '▓', '▒', '░', '▄', '▌', '▐', '▀'}

// blurText replaces roughly ratio of the characters of every token longer
// than two runes with random glyphs. Tokens of length <= 2 pass through
// unchanged. The choice of positions and glyphs is random per call, so two
// renders of the same text differ.
func blurText(text string, ratio float64) string {
	if text == "" {
		return text
	}
	if ratio <= 0 || ratio > 1 {
		ratio = 0.6
	}

	words := strings.Fields(text)
	for i, word := range words {
		runes := []rune(word)
		if len(runes) <= 2 {
			continue
		}

		n := int(float64(len(runes)) * ratio)
		if n < 1 {
			n = 1
		}
		for _, pos := range rand.Perm(len(runes))[:n] {
			runes[pos] = blurGlyphs[rand.Intn(len(blurGlyphs))]
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
