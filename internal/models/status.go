package models

// Status is the lifecycle state of a complaint
type Status string

const (
	StatusSubmitted  Status = "SUBMITTED"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
	StatusBreached   Status = "BREACHED"
)

// BREACHED is only ever entered by the SLA sweep, so no row lists it as a target.
var transitions = map[Status][]Status{
	StatusSubmitted:  {StatusAssigned, StatusInProgress, StatusResolved, StatusClosed},
	StatusAssigned:   {StatusInProgress, StatusResolved, StatusClosed},
	StatusInProgress: {StatusResolved, StatusClosed},
	StatusBreached:   {StatusAssigned, StatusInProgress, StatusResolved, StatusClosed},
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusAssigned, StatusInProgress, StatusResolved, StatusClosed, StatusBreached:
		return true
	}
	return false
}

// Terminal reports whether s ends the complaint lifecycle
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// CanTransitionTo reports whether an authority may move a complaint from s to next
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
