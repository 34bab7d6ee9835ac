package firmata

import "sync/atomic"

// State is the lifecycle state of an engine.
type State uint32

const (
	// StateCreated: constructed, reader loop not started.
	StateCreated State = iota
	// StateStarted: reader loop running, start handshake in progress.
	StateStarted
	// StateRunning: handshake done, requests accepted.
	StateRunning
	// StateShuttingDown: Close in progress.
	StateShuttingDown
	// StateClosed: transport closed, reader loop gone.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateStarted:
		return "Started"
	case StateRunning:
		return "Running"
	case StateShuttingDown:
		return "ShuttingDown"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

type atomicState struct {
	state atomic.Uint32
}

func (st *atomicState) Get() State {
	return State(st.state.Load())
}

func (st *atomicState) String() string {
	return st.Get().String()
}

func (st *atomicState) transition(from, to State) bool {
	return st.state.CompareAndSwap(uint32(from), uint32(to))
}

func (st *atomicState) ToStarted() bool {
	return st.transition(StateCreated, StateStarted)
}

func (st *atomicState) ToRunning() bool {
	if st.Get() == StateRunning {
		return true
	}

	return st.transition(StateStarted, StateRunning)
}

// ToShuttingDown moves a started or running engine to ShuttingDown and
// returns the state it left.
func (st *atomicState) ToShuttingDown() (State, bool) {
	for {
		cur := st.Get()
		if cur != StateStarted && cur != StateRunning {
			return cur, false
		}
		if st.transition(cur, StateShuttingDown) {
			return cur, true
		}
	}
}

func (st *atomicState) ToClosed() {
	st.state.Store(uint32(StateClosed))
}
