// Package lifecycle implements the case state machine: the closed set of
// lifecycle statuses, the declarative transition table gating each status
// change by current status and actor role, the role authorizer, payload
// validation, the vote tally and the target matcher.
package lifecycle

// Status is a case lifecycle status. The persisted string values form a
// closed enum; no operation may produce a status outside this set.
type Status string

// The full status enum. PendingVerification is the initial status;
// VerificationFailed, Closed and Rejected are terminal.
const (
	StatusPendingVerification Status = "PendingVerification"
	StatusVerificationFailed  Status = "VerificationFailed"
	StatusTargetNotified      Status = "TargetNotified"
	StatusAwaitingResponse    Status = "AwaitingResponse"
	StatusResponseReceived    Status = "ResponseReceived"
	StatusUnderReview         Status = "UnderReview"
	StatusPublishedForVoting  Status = "PublishedForVoting"
	StatusVerdictReached      Status = "VerdictReached"
	StatusClosed              Status = "Closed"
	StatusRejected            Status = "Rejected"
)

// Roles consumed by the authorizer. Role is the sole authorization input.
const (
	RoleMember = "member"
	RoleJudge  = "judge"
	RoleAdmin  = "admin"
)

// Event names a requested lifecycle transition
type Event string

// Events accepted by Transition
const (
	EventVerify         Event = "verify"
	EventRejectTarget   Event = "reject_verification"
	EventSubmitResponse Event = "submit_response"
	EventWindowElapsed  Event = "window_elapsed"
	EventMoveToReview   Event = "move_to_review"
	EventPublish        Event = "publish"
	EventRejectCase     Event = "reject_case"
	EventSetVerdict     Event = "set_verdict"
	EventClose          Event = "close"
)

var allStatuses = []Status{
	StatusPendingVerification,
	StatusVerificationFailed,
	StatusTargetNotified,
	StatusAwaitingResponse,
	StatusResponseReceived,
	StatusUnderReview,
	StatusPublishedForVoting,
	StatusVerdictReached,
	StatusClosed,
	StatusRejected,
}

var terminalStatuses = map[Status]bool{
	StatusVerificationFailed: true,
	StatusClosed:             true,
	StatusRejected:           true,
}

// rule describes one row of the transition table: the statuses the event may
// fire from, the roles allowed to fire it (empty means the caller has already
// established the actor, e.g. the resolved target or the scheduler), and the
// resulting status.
type rule struct {
	from  []Status
	roles []string
	to    Status
}

var transitions = map[Event]rule{
	EventVerify: {
		from:  []Status{StatusPendingVerification},
		roles: []string{RoleJudge, RoleAdmin},
		to:    StatusTargetNotified,
	},
	EventRejectTarget: {
		from:  []Status{StatusPendingVerification},
		roles: []string{RoleJudge, RoleAdmin},
		to:    StatusVerificationFailed,
	},
	EventSubmitResponse: {
		from: []Status{StatusTargetNotified},
		to:   StatusResponseReceived,
	},
	EventWindowElapsed: {
		from: []Status{StatusTargetNotified},
		to:   StatusAwaitingResponse,
	},
	EventMoveToReview: {
		from:  []Status{StatusResponseReceived, StatusAwaitingResponse},
		roles: []string{RoleJudge, RoleAdmin},
		to:    StatusUnderReview,
	},
	EventPublish: {
		from:  []Status{StatusUnderReview},
		roles: []string{RoleJudge, RoleAdmin},
		to:    StatusPublishedForVoting,
	},
	EventRejectCase: {
		from:  []Status{StatusUnderReview},
		roles: []string{RoleJudge, RoleAdmin},
		to:    StatusRejected,
	},
	EventSetVerdict: {
		from:  []Status{StatusPublishedForVoting},
		roles: []string{RoleJudge, RoleAdmin},
		to:    StatusVerdictReached,
	},
	EventClose: {
		from:  []Status{StatusVerdictReached},
		roles: []string{RoleJudge, RoleAdmin},
		to:    StatusClosed,
	},
}

// Authorize reports whether the actor role is in the required set. Stateless;
// evaluated before any lifecycle transition or data mutation.
func Authorize(role string, required ...string) bool {
	for _, r := range required {
		if role == r {
			return true
		}
	}
	return false
}

// Transition validates the requested event against the current status and the
// actor role, returning the next status. The role gate is evaluated first
// (ErrForbidden), then the status gate (ErrInvalidTransition). The caller is
// responsible for persisting the change atomically against the same current
// status it validated.
func Transition(current Status, ev Event, role string) (Status, error) {
	r, ok := transitions[ev]
	if !ok {
		return "", ErrInvalidTransition
	}
	if len(r.roles) > 0 && !Authorize(role, r.roles...) {
		return "", ErrForbidden
	}
	for _, f := range r.from {
		if current == f {
			return r.to, nil
		}
	}
	return "", ErrInvalidTransition
}

// IsTerminal reports whether no further transitions may leave the status
func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

// ValidStatus reports whether s is a member of the closed status enum
func ValidStatus(s Status) bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Statuses returns the full closed status enum
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// CanDelete reports whether the actor may hard-delete a case in the given
// status. Judges and admins may remove any non-terminal case.
func CanDelete(current Status, role string) error {
	if !Authorize(role, RoleJudge, RoleAdmin) {
		return ErrForbidden
	}
	if IsTerminal(current) {
		return ErrInvalidTransition
	}
	return nil
}

// CanVote reports whether the actor may cast a vote on a case in the given
// status. Voting is restricted to judges, and only while the case is
// published for voting. The duplicate-vote check happens atomically at the
// store, not here.
func CanVote(current Status, role string) error {
	if role != RoleJudge {
		return ErrForbidden
	}
	if current != StatusPublishedForVoting {
		return ErrVoteRejected
	}
	return nil
}

// CanUpdateVerdict reports whether a verdict update is meaningful for the
// given status. Verdicts only make sense once a case has been published;
// earlier statuses reject the update.
func CanUpdateVerdict(current Status, role string) error {
	if !Authorize(role, RoleJudge, RoleAdmin) {
		return ErrForbidden
	}
	switch current {
	case StatusPublishedForVoting, StatusVerdictReached, StatusClosed:
		return nil
	}
	return ErrInvalidTransition
}
