package diagnosis

// Status is the lifecycle state of a diagnosis request. The stored
// values are the business labels used across the workflow.
type Status string

const (
	// StatusSubmitted is the initial state (신청).
	StatusSubmitted Status = "신청"
	// StatusAssigned means an evaluator has been assigned (평가사배정).
	StatusAssigned Status = "평가사배정"
	// StatusAnswered means the evaluator saved a response (답변완료).
	StatusAnswered Status = "답변완료"
	// StatusSent is the terminal state after result delivery (전송완료).
	StatusSent Status = "전송완료"
)

// Rank orders statuses along the lifecycle. Unknown statuses rank below
// the initial state.
func (s Status) Rank() int {
	switch s {
	case StatusSubmitted:
		return 1
	case StatusAssigned:
		return 2
	case StatusAnswered:
		return 3
	case StatusSent:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool { return s.Rank() > 0 }

// AtLeast reports whether s has reached the given state.
func (s Status) AtLeast(other Status) bool {
	return s.Valid() && other.Valid() && s.Rank() >= other.Rank()
}

// CanTransition reports whether next is the immediate successor of s.
// The workflow never skips a state and never moves backwards; the admin
// direct-edit path bypasses this check deliberately.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.Rank() == s.Rank()+1
}
