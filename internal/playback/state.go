package playback

// State is the phase of a reading session.
type State int

const (
	// StateIdle means no session is running.
	StateIdle State = iota
	// StateGenerating means the current take is waiting for audio.
	StateGenerating
	// StatePlaying means the current take is audible, or the session is in
	// the pause between two takes.
	StatePlaying
	// StatePaused means the user paused; the current take may be primed.
	StatePaused
	// StateEnded means the last take finished.
	StateEnded
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Active reports whether a session is running.
func (s State) Active() bool {
	return s == StateGenerating || s == StatePlaying || s == StatePaused
}

// StateMachine validates session state transitions.
type StateMachine struct {
	current     State
	transitions map[State][]State
	onEnter     map[State]func()
	onExit      map[State]func()
}

// NewStateMachine creates a state machine in StateIdle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[State][]State{
			StateIdle:       {StateGenerating},
			StateGenerating: {StatePlaying, StatePaused, StateIdle},
			StatePlaying:    {StateGenerating, StatePaused, StateEnded, StateIdle},
			StatePaused:     {StatePlaying, StateGenerating, StateIdle},
			StateEnded:      {StateGenerating, StateIdle},
		},
		onEnter: make(map[State]func()),
		onExit:  make(map[State]func()),
	}
}

// Can reports whether the machine may move to state to.
func (sm *StateMachine) Can(to State) bool {
	for _, s := range sm.transitions[sm.current] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves to state to if the move is valid. Moving to the current
// state is a no-op that succeeds.
func (sm *StateMachine) Transition(to State) bool {
	if to == sm.current {
		return true
	}
	if !sm.Can(to) {
		return false
	}

	if fn := sm.onExit[sm.current]; fn != nil {
		fn()
	}
	sm.current = to
	if fn := sm.onEnter[to]; fn != nil {
		fn()
	}
	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() State {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state State, fn func()) {
	sm.onEnter[state] = fn
}

// OnExit registers a callback for exiting a state.
func (sm *StateMachine) OnExit(state State, fn func()) {
	sm.onExit[state] = fn
}
