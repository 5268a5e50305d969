package fsm

import (
	"context"
	"log"

	"englishtutorbot/pkg/state"

	"github.com/looplab/fsm"
)

func NewLessonFSM(initialState string) *fsm.FSM {

	callbacks := fsm.Callbacks{
		"enter_" + StateAwaitingAnswer: enterAwaitingAnswer,
		"enter_" + StateEnded:          enterEnded,
		"enter_" + StateIdle:           enterIdle,
	}

	events := fsm.Events{
		{Name: EventStartLesson, Src: []string{StateIdle}, Dst: StateAwaitingAnswer},
		{Name: EventAnswerReceived, Src: []string{StateAwaitingAnswer}, Dst: StateGrading},
		{Name: EventGradedCorrect, Src: []string{StateGrading}, Dst: StateAdvancing},
		{Name: EventGradedRetry, Src: []string{StateGrading}, Dst: StateAwaitingAnswer},
		{Name: EventGradedReveal, Src: []string{StateGrading}, Dst: StateAdvancing},
		{Name: EventNextCard, Src: []string{StateAdvancing}, Dst: StateAwaitingAnswer},
		{Name: EventLessonDone, Src: []string{StateAdvancing}, Dst: StateEnded},
		{Name: EventRestart, Src: []string{StateEnded}, Dst: StateIdle},
		{Name: EventForceIdle, Src: []string{StateIdle, StateAwaitingAnswer, StateGrading, StateAdvancing, StateEnded}, Dst: StateIdle},
	}

	return fsm.NewFSM(initialState, events, callbacks)
}

// callbackArgs extracts the standard (engine, session, chatID) argument triple
// every enter callback is invoked with.
func callbackArgs(e *fsm.Event) (*Engine, *state.SessionState, int64, bool) {
	if len(e.Args) < 3 {
		log.Printf("[callbackArgs] FATAL: Not enough arguments for event %s (got %d, expected 3)", e.Event, len(e.Args))
		return nil, nil, 0, false
	}
	engine, okE := e.Args[0].(*Engine)
	sess, okS := e.Args[1].(*state.SessionState)
	chatID, okC := e.Args[2].(int64)
	if !okE || engine == nil {
		log.Printf("[callbackArgs] FATAL: Failed to cast or nil Engine arg for event %s", e.Event)
		return nil, nil, 0, false
	}
	if !okS || sess == nil {
		log.Printf("[callbackArgs] FATAL: Failed to cast or nil SessionState arg for event %s", e.Event)
		return nil, nil, 0, false
	}
	if !okC {
		log.Printf("[callbackArgs] FATAL: Failed to cast ChatID arg for event %s", e.Event)
		return nil, nil, 0, false
	}
	return engine, sess, chatID, true
}

func enterAwaitingAnswer(ctx context.Context, e *fsm.Event) {
	engine, sess, chatID, ok := callbackArgs(e)
	if !ok {
		return
	}
	// On a retry transition the feedback text was already queued by the
	// grading path; this callback only repeats the prompt.
	engine.sendCardPrompt(sess, chatID)
	log.Printf("[enterAwaitingAnswer] Prompt sent for user %d (card %d/%d, event %s)",
		sess.UserID, sess.Position+1, len(sess.Lesson), e.Event)
}

func enterEnded(ctx context.Context, e *fsm.Event) {
	engine, sess, chatID, ok := callbackArgs(e)
	if !ok {
		return
	}
	engine.sendLessonSummary(sess, chatID)
	log.Printf("[enterEnded] Lesson finished for user %d (%d cards, %d correct)",
		sess.UserID, len(sess.Lesson), sess.LessonCorrect)
}

func enterIdle(ctx context.Context, e *fsm.Event) {
	_, sess, _, ok := callbackArgs(e)
	if !ok {
		return
	}
	sess.ResetLesson()
	log.Printf("[enterIdle] Session reset for user %d (event %s, from %s)", sess.UserID, e.Event, e.Src)
}

type fsmCreatorImpl struct{}

func (fc *fsmCreatorImpl) NewLessonFSM() *fsm.FSM {
	return NewLessonFSM(StateIdle)
}

func NewFSMCreator() state.FSMCreator {
	return &fsmCreatorImpl{}
}
