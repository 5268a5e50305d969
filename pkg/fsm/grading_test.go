package fsm

import (
	"testing"

	"englishtutorbot/pkg/state"
)

func cardToRussian(russian string, alternatives ...string) *state.PendingCard {
	return &state.PendingCard{
		English:      "hello",
		Russian:      russian,
		Alternatives: alternatives,
		Direction:    state.DirectionToRussian,
	}
}

func TestGradeExactMatch(t *testing.T) {
	g := &HeuristicGrader{}
	if got := g.Grade(cardToRussian("привет"), "привет"); got != ScoreFull {
		t.Fatalf("expected full score, got %v", got)
	}
}

func TestGradeIgnoresCaseAndPunctuation(t *testing.T) {
	g := &HeuristicGrader{}
	if got := g.Grade(cardToRussian("привет"), "  Привет! "); got != ScoreFull {
		t.Fatalf("expected full score, got %v", got)
	}
}

func TestGradeAlternativeMatch(t *testing.T) {
	g := &HeuristicGrader{}
	card := cardToRussian("привет; здравствуйте", "привет", "здравствуйте")
	if got := g.Grade(card, "здравствуйте"); got != ScoreFull {
		t.Fatalf("expected alternative to pass, got %v", got)
	}
}

func TestGradePartialOverlap(t *testing.T) {
	g := &HeuristicGrader{}
	card := cardToRussian("как у тебя дела")

	// 3 of 4 tokens shared.
	if got := g.Grade(card, "как у тебя"); got != ScoreHigh {
		t.Fatalf("expected %v for 3/4 overlap, got %v", ScoreHigh, got)
	}
	// 2 of 4.
	if got := g.Grade(card, "как дела"); got != ScoreHalf {
		t.Fatalf("expected %v for 2/4 overlap, got %v", ScoreHalf, got)
	}
	// 1 of 4.
	if got := g.Grade(card, "дела"); got != ScoreLow {
		t.Fatalf("expected %v for 1/4 overlap, got %v", ScoreLow, got)
	}
}

func TestGradeNoOverlap(t *testing.T) {
	g := &HeuristicGrader{}
	if got := g.Grade(cardToRussian("привет"), "до свидания"); got != ScoreNone {
		t.Fatalf("expected zero score, got %v", got)
	}
}

func TestGradeEmptyAnswer(t *testing.T) {
	g := &HeuristicGrader{}
	if got := g.Grade(cardToRussian("привет"), "   "); got != ScoreNone {
		t.Fatalf("expected zero score for blank answer, got %v", got)
	}
}

func TestGradeExtraWordsReduceScore(t *testing.T) {
	g := &HeuristicGrader{}
	card := cardToRussian("привет")
	// One shared token out of four given keeps this below passing.
	if got := g.Grade(card, "ну привет дорогой друг"); got >= passingScore {
		t.Fatalf("padding must not earn a pass, got %v", got)
	}
}

func TestNormalizeAnswer(t *testing.T) {
	if got := normalizeAnswer("It's  raining!"); got != "its raining" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestSplitVariants(t *testing.T) {
	got := splitVariants("привет; здравствуйте / хай")
	if len(got) != 3 || got[0] != "привет" || got[2] != "хай" {
		t.Fatalf("unexpected variants: %v", got)
	}
	if splitVariants("привет") != nil {
		t.Fatalf("single value has no variants")
	}
}
