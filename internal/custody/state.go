package custody

// State is the ledger state named after the most recent action.
type State string

const (
	StateEmpty    State = "empty"
	StateCreated  State = "created"
	StateViewed   State = "viewed"
	StateExported State = "exported"
	StateSynced   State = "synced"
	StateVerified State = "verified"
)

func stateFor(a Action) State {
	switch a {
	case ActionCreated:
		return StateCreated
	case ActionViewed:
		return StateViewed
	case ActionExported:
		return StateExported
	case ActionSynced:
		return StateSynced
	case ActionVerified:
		return StateVerified
	default:
		return StateEmpty
	}
}

// CanTransition reports whether appending action a is legal from state s.
// Only an empty ledger accepts "created"; every other state accepts any
// non-"created" action.
func CanTransition(s State, a Action) bool {
	if !a.Valid() {
		return false
	}
	if s == StateEmpty {
		return a == ActionCreated
	}
	return a != ActionCreated
}
