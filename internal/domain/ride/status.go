package ride

// Status represents ride status
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAccepted   Status = "ACCEPTED"
	StatusEnRoute    Status = "EN_ROUTE"
	StatusPickedUp   Status = "PICKED_UP"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// successor is the advance table: each non-terminal, post-acceptance
// status has exactly one legal successor. PENDING is excluded because
// leaving it goes through Accept, not Advance.
var successor = map[Status]Status{
	StatusAccepted:   StatusEnRoute,
	StatusEnRoute:    StatusPickedUp,
	StatusPickedUp:   StatusInProgress,
	StatusInProgress: StatusCompleted,
}

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusEnRoute, StatusPickedUp,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Successor returns the status Advance may move to from s, if any.
func (s Status) Successor() (Status, bool) {
	next, ok := successor[s]
	return next, ok
}

// ParseStatus validates a client-supplied status string.
func ParseStatus(in string) (Status, bool) {
	s := Status(in)
	return s, s.IsValid()
}
