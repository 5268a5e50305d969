package fsm

const (
	StateIdle           = "idle"
	StateAwaitingAnswer = "awaiting_answer"
	StateGrading        = "grading"
	StateAdvancing      = "advancing"
	StateEnded          = "ended"
)

const (
	EventStartLesson    = "start_lesson"
	EventAnswerReceived = "answer_received"
	EventGradedCorrect  = "graded_correct"
	EventGradedRetry    = "graded_retry"
	EventGradedReveal   = "graded_reveal"
	EventNextCard       = "next_card"
	EventLessonDone     = "lesson_done"
	EventRestart        = "restart"
	EventForceIdle      = "force_idle"
)

const (
	CommandStart    = "start"
	CommandStop     = "stop"
	CommandHelp     = "help"
	CommandStats    = "stats"
	CommandSync     = "sync"
	CommandAuto     = "auto"
	CommandInterval = "interval"
)
