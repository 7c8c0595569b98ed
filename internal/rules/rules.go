// Package rules is the keyword engine: a fixed phrase list matched against the text,
// with fixed confidences. It needs no model and is always available.
package rules

import (
	"sort"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/hyperjump/mailsift/internal/classifier"
)

// Confidences reported by the keyword engine.
const (
	SpamConfidence = 0.85
	HamConfidence  = 0.92
)

// Engine matches phrases with an Aho-Corasick automaton over normalized text.
// Normalization lower-cases, maps common leet substitutions back to letters, and turns
// every run of whitespace, punctuation and symbols into one space, so "BUY  n0w!" matches
// "buy now" while "wind is counted" does not match "discount". Matches are substring
// matches within that text, as in a plain "phrase in text" test.
type Engine struct {
	matcher *goahocorasick.Machine
	phrases map[string]string // normalized -> configured phrase
}

// New builds an engine for phrases. Phrases that normalize to nothing are ignored.
func New(phrases []string) (*Engine, error) {
	e := &Engine{phrases: make(map[string]string)}
	var patterns [][]rune
	for _, p := range phrases {
		norm := string(normalize([]rune(p)))
		if norm == "" {
			continue
		}
		if _, dup := e.phrases[norm]; dup {
			continue
		}
		e.phrases[norm] = p
		patterns = append(patterns, []rune(norm))
	}
	if len(patterns) == 0 {
		return e, nil
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	e.matcher = m
	return e, nil
}

// Matches returns the distinct configured phrases found in text, sorted.
func (e *Engine) Matches(text string) []string {
	if e.matcher == nil {
		return nil
	}
	norm := normalize([]rune(text))
	if len(norm) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, term := range e.matcher.MultiPatternSearch(norm, false) {
		phrase := e.phrases[string(term.Word)]
		if phrase == "" || seen[phrase] {
			continue
		}
		seen[phrase] = true
		out = append(out, phrase)
	}
	sort.Strings(out)
	return out
}

// Classify returns spam when any phrase matches, ham otherwise.
func (e *Engine) Classify(text string) classifier.Result {
	if len(e.Matches(text)) > 0 {
		return classifier.Result{Prediction: classifier.Spam, Confidence: SpamConfidence}
	}
	return classifier.Result{Prediction: classifier.Ham, Confidence: HamConfidence}
}

// normalize never emits a leading or trailing space.
func normalize(in []rune) []rune {
	out := make([]rune, 0, len(in))
	gap := false
	for _, r := range in {
		r = simplifyRune(r)
		if isSeparator(r) {
			gap = len(out) > 0
			continue
		}
		if gap {
			out = append(out, ' ')
			gap = false
		}
		out = append(out, unicode.ToLower(r))
	}
	return out
}

// simplifyRune maps leet substitutions back to letters.
func simplifyRune(r rune) rune {
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

func isSeparator(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
