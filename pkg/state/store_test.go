package state

import (
	"testing"
	"time"

	"github.com/looplab/fsm"
)

type stubCreator struct{}

func (stubCreator) NewLessonFSM() *fsm.FSM {
	return fsm.NewFSM("idle", fsm.Events{{Name: "go", Src: []string{"idle"}, Dst: "busy"}}, fsm.Callbacks{})
}

type nilCreator struct{}

func (nilCreator) NewLessonFSM() *fsm.FSM { return nil }

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	store := NewStore(stubCreator{})

	a := store.GetOrCreate(1, "Alice")
	if a == nil || a.LessonFSM == nil {
		t.Fatalf("expected session with FSM, got %+v", a)
	}
	b := store.GetOrCreate(1, "Alice")
	if a != b {
		t.Fatalf("expected the same session instance")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}
}

func TestGetOrCreateUpdatesUserName(t *testing.T) {
	store := NewStore(stubCreator{})
	store.GetOrCreate(1, "Alice")

	sess := store.GetOrCreate(1, "Alice Smith")
	if sess.UserName != "Alice Smith" {
		t.Fatalf("expected updated username, got %q", sess.UserName)
	}
}

func TestGetOrCreateNilFSM(t *testing.T) {
	store := NewStore(nilCreator{})
	if sess := store.GetOrCreate(1, "Alice"); sess != nil {
		t.Fatalf("expected nil session when FSM creation fails")
	}
}

func TestExpireIdleRemovesAndFinalizes(t *testing.T) {
	store := NewStore(stubCreator{})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	store.GetOrCreate(1, "Alice")
	store.GetOrCreate(2, "Bob")

	// Bob stays active.
	store.now = func() time.Time { return base.Add(25 * time.Minute) }
	store.Touch(2)

	var finalized []int64
	n := store.ExpireIdle(base.Add(31*time.Minute), 30*time.Minute, func(s *SessionState) {
		finalized = append(finalized, s.UserID)
	})
	if n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	if len(finalized) != 1 || finalized[0] != 1 {
		t.Fatalf("expected user 1 finalized, got %v", finalized)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 remaining session, got %d", store.Len())
	}
}

func TestExpireIdleSkipsReactivatedSession(t *testing.T) {
	store := NewStore(stubCreator{})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	store.GetOrCreate(1, "Alice")

	// The user comes back right before the sweep's cutoff check.
	store.now = func() time.Time { return base.Add(40 * time.Minute) }
	store.Touch(1)

	n := store.ExpireIdle(base.Add(41*time.Minute), 30*time.Minute, nil)
	if n != 0 {
		t.Fatalf("reactivated session must not expire, got %d", n)
	}
	if store.Len() != 1 {
		t.Fatalf("expected session to survive")
	}
}

func TestCurrentCardBounds(t *testing.T) {
	sess := &SessionState{
		Lesson: []PendingCard{
			{English: "hello", Russian: "привет", Direction: DirectionToRussian},
		},
	}
	if card := sess.CurrentCard(); card == nil || card.English != "hello" {
		t.Fatalf("expected first card, got %+v", card)
	}
	sess.Position = 1
	if card := sess.CurrentCard(); card != nil {
		t.Fatalf("expected nil past the end, got %+v", card)
	}
}

func TestPendingCardSides(t *testing.T) {
	card := PendingCard{English: "hello", Russian: "привет", Direction: DirectionToRussian}
	if card.Prompt() != "hello" || card.Expected() != "привет" {
		t.Fatalf("unexpected to_russian sides: %q / %q", card.Prompt(), card.Expected())
	}
	card.Direction = DirectionToEnglish
	if card.Prompt() != "привет" || card.Expected() != "hello" {
		t.Fatalf("unexpected to_english sides: %q / %q", card.Prompt(), card.Expected())
	}
}
