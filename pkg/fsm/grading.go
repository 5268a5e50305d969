package fsm

import (
	"strings"
	"unicode"

	"englishtutorbot/pkg/state"
)

// Grader scores a user's answer against the pending card. Implementations
// must be safe for concurrent use; the heuristic grader below is the default
// and an external grader can be swapped in through the Engine.
type Grader interface {
	Grade(card *state.PendingCard, answer string) float64
}

// Score ladder. A perfect or alternative match earns 1; partial token
// overlap maps onto the intermediate rungs; no overlap earns 0.
const (
	ScoreFull    = 1.0
	ScoreHigh    = 0.7
	ScoreHalf    = 0.5
	ScoreLow     = 0.3
	ScoreNone    = 0.0
	passingScore = ScoreFull
)

// HeuristicGrader grades by normalized comparison and token overlap.
type HeuristicGrader struct{}

var _ Grader = (*HeuristicGrader)(nil)

func (g *HeuristicGrader) Grade(card *state.PendingCard, answer string) float64 {
	got := normalizeAnswer(answer)
	if got == "" {
		return ScoreNone
	}

	expected := normalizeAnswer(card.Expected())
	if got == expected {
		return ScoreFull
	}
	for _, alt := range card.Alternatives {
		if got == normalizeAnswer(alt) {
			return ScoreFull
		}
	}

	return overlapScore(expected, got)
}

// overlapScore maps the shared-token ratio onto the score ladder.
func overlapScore(expected, got string) float64 {
	expTokens := strings.Fields(expected)
	gotTokens := strings.Fields(got)
	if len(expTokens) == 0 || len(gotTokens) == 0 {
		return ScoreNone
	}

	expSet := make(map[string]bool, len(expTokens))
	for _, t := range expTokens {
		expSet[t] = true
	}
	shared := 0
	for _, t := range gotTokens {
		if expSet[t] {
			shared++
		}
	}

	denom := len(expTokens)
	if len(gotTokens) > denom {
		denom = len(gotTokens)
	}
	ratio := float64(shared) / float64(denom)

	switch {
	case ratio > 0.8:
		return ScoreFull
	case ratio > 0.6:
		return ScoreHigh
	case ratio > 0.4:
		return ScoreHalf
	case ratio > 0.2:
		return ScoreLow
	default:
		return ScoreNone
	}
}

// normalizeAnswer lowercases and strips punctuation so "It's raining!" and
// "its raining" compare equal.
func normalizeAnswer(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// splitVariants breaks "hello; hi" style cells into acceptable alternatives.
func splitVariants(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == '/'
	})
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) <= 1 {
		return nil
	}
	return out
}

func scoreEmoji(score float64) string {
	switch {
	case score >= ScoreFull:
		return "🎉"
	case score >= ScoreHigh:
		return "👍"
	case score >= ScoreHalf:
		return "🙂"
	case score >= ScoreLow:
		return "😐"
	default:
		return "❌"
	}
}
