package state

import (
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// UserProfile is the persisted learning record for one user. The in-memory
// authoritative copy lives in the cache; the spreadsheet holds the durable
// row it is flushed to.
type UserProfile struct {
	UserID         int64
	UserName       string
	PhrasesSeen    int
	CorrectAnswers int
	LearnedPhrases int
	TotalScore     float64
	CurrentDeck    string
	LessonIndex    int
	LastSeen       time.Time
	AutoPractice   bool
	AutoInterval   time.Duration
	LastAuto       time.Time
}

// Direction of a translation exercise.
type Direction string

const (
	DirectionToRussian Direction = "to_russian"
	DirectionToEnglish Direction = "to_english"
)

// PendingCard is the question currently in flight for a session. It is a
// detached copy of a deck phrase so the engine never holds deck rows across
// a lesson.
type PendingCard struct {
	PhraseID     uint
	SheetRow     int
	English      string
	Russian      string
	Example      string
	Alternatives []string
	Direction    Direction
}

// Prompt returns the side of the card shown to the user.
func (c PendingCard) Prompt() string {
	if c.Direction == DirectionToEnglish {
		return c.Russian
	}
	return c.English
}

// Expected returns the side of the card the answer is graded against.
func (c PendingCard) Expected() string {
	if c.Direction == DirectionToEnglish {
		return c.English
	}
	return c.Russian
}

// SessionState is the live conversational context for one user. All fields
// except LastActivity are owned by the dialogue engine under Mu; LastActivity
// is mutated only through the Store.
type SessionState struct {
	UserID        int64
	UserName      string
	LessonFSM     *fsm.FSM
	Lesson        []PendingCard
	Position      int
	RetriesLeft   int
	LessonCorrect int
	LessonScore   float64
	LastActivity  time.Time
	Mu            sync.Mutex
}

// CurrentCard returns the card at the session cursor, nil past the end.
func (s *SessionState) CurrentCard() *PendingCard {
	if s.Position < 0 || s.Position >= len(s.Lesson) {
		return nil
	}
	return &s.Lesson[s.Position]
}

// ResetLesson clears the lesson cursor and pending cards.
func (s *SessionState) ResetLesson() {
	s.Lesson = nil
	s.Position = 0
	s.RetriesLeft = 0
	s.LessonCorrect = 0
	s.LessonScore = 0
}
