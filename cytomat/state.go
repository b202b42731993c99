package cytomat

import "fmt"

// State is the state of the engine's current or last exchange.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingResponse State = "awaiting_response"
	StateDecoded          State = "decoded"
	StateTimedOut         State = "timed_out"
	StateTransportFailed  State = "transport_failed"
)

// Event drives exchange state transitions.
type Event string

const (
	EventSend    Event = "send"
	EventFrame   Event = "frame"
	EventTimeout Event = "timeout"
	EventFail    Event = "fail"
	EventReset   Event = "reset"
)

// Terminal reports whether the exchange has finished.
func (s State) Terminal() bool {
	return s == StateDecoded || s == StateTimedOut || s == StateTransportFailed
}

// Transition returns the state after event. Terminal states accept a new
// send, so the engine stays usable after a timeout or transport failure.
func Transition(current State, event Event) (State, error) {
	if event == EventReset {
		return StateIdle, nil
	}

	switch current {
	case StateIdle, StateDecoded, StateTimedOut, StateTransportFailed:
		switch event {
		case EventSend:
			return StateAwaitingResponse, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateAwaitingResponse:
		switch event {
		case EventFrame:
			return StateDecoded, nil
		case EventTimeout:
			return StateTimedOut, nil
		case EventFail:
			return StateTransportFailed, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
