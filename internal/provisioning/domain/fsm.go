package domain

var transitions = map[Status][]Status{
	StatusActive:    {StatusSuspended},
	StatusSuspended: {StatusActive, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a server may move from one status to
// another. Cancellation is only reachable through suspension.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
