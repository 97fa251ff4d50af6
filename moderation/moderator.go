// Package moderation masks forbidden words in message previews before they reach the screen.
package moderation

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Moderator is safe for concurrent use once built.
type Moderator struct {
	log     *slog.Logger
	matcher *goahocorasick.Machine
	mask    rune
}

// Verdict is the outcome of checking one text.
type Verdict struct {
	Text string
	// Words are the dictionary entries found, in order of appearance.
	Words []string
	// Lang is the ISO 639-1 code of the detected language, empty when unknown.
	Lang string
}

// folded is the searchable form of a text, with the index of each rune in the original.
type folded struct {
	runes  []rune
	origin []int
}

// NewModerator builds the automaton over the folded form of words.
// Without any word the moderator leaves every text untouched.
func NewModerator(log *slog.Logger, words []string, mask rune) (*Moderator, error) {
	patterns := lo.FilterMap(words, func(w string, _ int) ([]rune, bool) {
		f := fold(strings.TrimSpace(w))
		return f.runes, len(f.runes) > 0
	})
	if len(patterns) == 0 {
		return &Moderator{log: log, mask: mask}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{log: log, matcher: m, mask: mask}, nil
}

// Censor replaces every rune of a matched word with the mask, keeping spacing and punctuation
// outside the match intact. Leet variants and separators inside a word are still matched.
func (m *Moderator) Censor(text string) string {
	return m.Check(text).Text
}

// Check censors text and reports what was found. Every dictionary applies whatever
// the detected language, which is only reported.
func (m *Moderator) Check(text string) Verdict {
	verdict := Verdict{Text: text}
	if m.matcher == nil || text == "" {
		return verdict
	}
	f := fold(text)
	if len(f.runes) == 0 {
		return verdict
	}
	hits := m.matcher.MultiPatternSearch(f.runes, false)
	if len(hits) == 0 {
		return verdict
	}

	out := []rune(text)
	for _, hit := range hits {
		start, end := hit.Pos, hit.Pos+len(hit.Word)
		if start < 0 || end > len(f.origin) {
			continue
		}
		for i := f.origin[start]; i <= f.origin[end-1]; i++ {
			out[i] = m.mask
		}
		verdict.Words = append(verdict.Words, string(hit.Word))
	}
	verdict.Text = string(out)

	if info := whatlanggo.Detect(text); info.IsReliable() {
		verdict.Lang = info.Lang.Iso6391()
	}
	if m.log != nil {
		m.log.Debug("Censored words found", "lang", verdict.Lang, "count", len(verdict.Words))
	}
	return verdict
}

func fold(text string) folded {
	src := []rune(text)
	f := folded{runes: make([]rune, 0, len(src)), origin: make([]int, 0, len(src))}
	for i, r := range src {
		r = unleet(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		f.runes = append(f.runes, unicode.ToLower(r))
		f.origin = append(f.origin, i)
	}
	return f
}

// unleet maps common substitutions back to letters.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}
