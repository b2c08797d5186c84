package domain

// Payment and fulfilment evolve independently; each has its own table of
// legal moves.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusFailed:  {PaymentStatusPaid},
	PaymentStatusPaid:    {PaymentStatusRefunded},
}

var statusTransitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusCancelled},
	StatusActive:  {StatusCancelled},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCancelled:
		return true
	}
	return false
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CanTransitionStatus(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func PaymentSources(to PaymentStatus) []PaymentStatus {
	var out []PaymentStatus
	for _, from := range []PaymentStatus{PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded} {
		if CanTransitionPayment(from, to) {
			out = append(out, from)
		}
	}
	return out
}

func StatusSources(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusPending, StatusActive, StatusCancelled} {
		if CanTransitionStatus(from, to) {
			out = append(out, from)
		}
	}
	return out
}
