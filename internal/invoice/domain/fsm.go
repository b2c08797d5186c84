package domain

var transitions = map[Status][]Status{
	StatusUnpaid:  {StatusPending, StatusPaid, StatusCancelled},
	StatusPending: {StatusPaid, StatusCancelled, StatusUnpaid},
}

func (s Status) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPending, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Open reports whether the invoice is still owed.
func (s Status) Open() bool {
	return s == StatusUnpaid || s == StatusPending
}

// CanTransition is the single source of truth for invoice status changes.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Sources lists every status that may move to to.
func Sources(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusUnpaid, StatusPending, StatusPaid, StatusCancelled} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
