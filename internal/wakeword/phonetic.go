package wakeword

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// matchPhonetic tries the same three token positions as the exact patterns,
// treating two tokens as equal when they share a Double Metaphone code.
func matchPhonetic(transcript, word string) (string, bool) {
	tokens := strings.Fields(transcript)
	wakeTokens := strings.Fields(strings.ToLower(word))
	n := len(wakeTokens)
	if n == 0 || len(tokens) < n {
		return "", false
	}
	if tokensSoundAlike(tokens[:n], wakeTokens) {
		return joinRemainder(tokens[n:]), true
	}
	if len(tokens) >= n+1 && tokensSoundAlike(tokens[1:n+1], wakeTokens) {
		return joinRemainder(tokens[n+1:]), true
	}
	if len(tokens) > n && tokensSoundAlike(tokens[len(tokens)-n:], wakeTokens) {
		return joinRemainder(tokens[:len(tokens)-n]), true
	}
	return "", false
}

func tokensSoundAlike(spoken, wake []string) bool {
	for i := range wake {
		if !soundAlike(normalizeToken(spoken[i]), wake[i]) {
			return false
		}
	}
	return true
}

func soundAlike(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}

func normalizeToken(tok string) string {
	return strings.ToLower(strings.TrimFunc(tok, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}

func joinRemainder(tokens []string) string {
	s := strings.Join(tokens, " ")
	return strings.TrimSpace(strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	}))
}
