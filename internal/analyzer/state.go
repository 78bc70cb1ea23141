package analyzer

// State tracks where a chunk sits in the attempt/escalation loop. A chunk
// moves Attempt -> Validate, then either terminates (Accepted) or escalates.
// The first escalation appends strict formatting instructions; later ones ask
// the model itself to rewrite the guidance (MetaRefine). When the attempt
// ceiling is exhausted the best response is kept as AcceptedWithErrors.
type State int

const (
	StateAttempt State = iota
	StateValidate
	StateEscalate
	StateMetaRefine
	StateAccepted
	StateAcceptedWithErrors
)

func (s State) String() string {
	switch s {
	case StateAttempt:
		return "attempt"
	case StateValidate:
		return "validate"
	case StateEscalate:
		return "escalate"
	case StateMetaRefine:
		return "meta_refine"
	case StateAccepted:
		return "accepted"
	case StateAcceptedWithErrors:
		return "accepted_with_errors"
	default:
		return "unknown"
	}
}

// nextEscalation decides how the upcoming retry should be prepared. The first
// retry gets canned strict instructions; every later retry goes through
// meta-refinement.
func nextEscalation(failedAttempts int) State {
	if failedAttempts <= 1 {
		return StateEscalate
	}
	return StateMetaRefine
}
