package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle          State = "idle"
	StateRecording     State = "recording"
	StateProcessing    State = "processing"
	StateShowingResult State = "showing-result"
	StateError         State = "error"
)

const (
	EventStart       Event = "start"
	EventStop        Event = "stop"
	EventTranscribed Event = "transcribed"
	EventFail        Event = "fail"
)

// Transition applies event to current. The machine has no terminal state:
// start re-arms recording from idle, showing-result and error alike.
func Transition(current State, event Event) (State, error) {
	if !current.Valid() {
		return current, fmt.Errorf("unknown state %q", current)
	}
	if event == EventFail {
		return StateError, nil
	}

	switch current {
	case StateIdle, StateShowingResult, StateError:
		switch event {
		case EventStart:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateProcessing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateProcessing:
		switch event {
		case EventTranscribed:
			return StateShowingResult, nil
		default:
			return current, invalidTransition(current, event)
		}
	}
	return current, invalidTransition(current, event)
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateRecording, StateProcessing, StateShowingResult, StateError:
		return true
	default:
		return false
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
