package advance

// transitions lists every status move accepted by TransitionStatus.
// DISBURSED -> REPAID is reachable only through a full repayment.
var transitions = map[Status][]Status{
	StatusRequested: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusDisbursed, StatusRejected},
	StatusDisbursed: {StatusRepaid, StatusDefaulted},
}

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusRejected, StatusDisbursed, StatusRepaid, StatusDefaulted:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusRepaid || s == StatusRejected || s == StatusDefaulted
}

// CanTransition reports whether from -> to appears in the transition table.
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
