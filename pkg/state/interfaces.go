package state

import "github.com/looplab/fsm"

type FSMCreator interface {
	NewLessonFSM() *fsm.FSM
}
