// Package wakeword decides whether a transcript addresses the bot.
package wakeword

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/foxseedlab/kotodama/internal/settings"
)

// separators may sit between the wake phrase and the rest of the utterance.
const (
	separators = `[\s"'’”)\]\.,!?;:\-–]*`
	openers    = `[\s"'“‘(\[]*`
)

type Result struct {
	Triggered bool
	Remainder string
}

type Gate struct {
	phonetic bool
}

// NewGate returns a gate. With phonetic enabled, a failed exact match is
// retried by comparing Double Metaphone codes token by token.
func NewGate(phonetic bool) *Gate {
	return &Gate{phonetic: phonetic}
}

// Match accepts the wake phrase as the first token, the second token or the
// last token. The remainder keeps the transcript's casing.
func (g *Gate) Match(transcript string, wake settings.Wake) (res Result) {
	transcript = strings.TrimSpace(transcript)
	if !wake.Enabled {
		return Result{Triggered: true, Remainder: transcript}
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("wake word matching panicked; passing transcript through", "panic", r)
			res = Result{Triggered: true, Remainder: transcript}
		}
	}()

	word := strings.TrimSpace(wake.Word)
	if word == "" {
		word = settings.DefaultWakeWord
	}
	patterns, err := compilePatterns(word)
	if err != nil {
		slog.Warn("wake word pattern failed to compile; passing transcript through", "error", err, "word", word)
		return Result{Triggered: true, Remainder: transcript}
	}
	for _, p := range patterns {
		if m := p.FindStringSubmatch(transcript); m != nil {
			return Result{Triggered: true, Remainder: strings.TrimSpace(m[1])}
		}
	}
	if g != nil && g.phonetic {
		if remainder, ok := matchPhonetic(transcript, word); ok {
			return Result{Triggered: true, Remainder: remainder}
		}
	}
	return Result{}
}

func compilePatterns(word string) ([]*regexp.Regexp, error) {
	w := regexp.QuoteMeta(word)
	boundary := ""
	if last, _ := utf8.DecodeLastRuneInString(word); last == '_' || unicode.IsLetter(last) || unicode.IsDigit(last) {
		boundary = `\b`
	}
	sources := []string{
		`(?is)^` + openers + w + boundary + separators + `(.*)$`,
		`(?is)^\S+\s+` + w + boundary + separators + `(.*)$`,
		`(?is)^(.*?\S)\s+` + w + separators + `$`,
	}
	patterns := make([]*regexp.Regexp, 0, len(sources))
	for _, src := range sources {
		p, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("compile wake pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}
