package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		event   Event
		role    string
		want    Status
		wantErr error
	}{
		{"verify as judge", StatusPendingVerification, EventVerify, RoleJudge, StatusTargetNotified, nil},
		{"verify as admin", StatusPendingVerification, EventVerify, RoleAdmin, StatusTargetNotified, nil},
		{"reject verification", StatusPendingVerification, EventRejectTarget, RoleJudge, StatusVerificationFailed, nil},
		{"submit response", StatusTargetNotified, EventSubmitResponse, RoleMember, StatusResponseReceived, nil},
		{"window elapsed", StatusTargetNotified, EventWindowElapsed, "", StatusAwaitingResponse, nil},
		{"review after response", StatusResponseReceived, EventMoveToReview, RoleJudge, StatusUnderReview, nil},
		{"review after silence", StatusAwaitingResponse, EventMoveToReview, RoleAdmin, StatusUnderReview, nil},
		{"publish", StatusUnderReview, EventPublish, RoleJudge, StatusPublishedForVoting, nil},
		{"reject case", StatusUnderReview, EventRejectCase, RoleJudge, StatusRejected, nil},
		{"set verdict", StatusPublishedForVoting, EventSetVerdict, RoleJudge, StatusVerdictReached, nil},
		{"close", StatusVerdictReached, EventClose, RoleAdmin, StatusClosed, nil},

		{"verify as member", StatusPendingVerification, EventVerify, RoleMember, "", ErrForbidden},
		{"publish as member", StatusUnderReview, EventPublish, RoleMember, "", ErrForbidden},
		{"close as member", StatusVerdictReached, EventClose, RoleMember, "", ErrForbidden},

		{"verify already verified", StatusTargetNotified, EventVerify, RoleJudge, "", ErrInvalidTransition},
		{"publish before review", StatusResponseReceived, EventPublish, RoleJudge, "", ErrInvalidTransition},
		{"republish published case", StatusPublishedForVoting, EventPublish, RoleJudge, "", ErrInvalidTransition},
		{"close without verdict", StatusPublishedForVoting, EventClose, RoleAdmin, "", ErrInvalidTransition},
		{"respond after window", StatusAwaitingResponse, EventSubmitResponse, RoleMember, "", ErrInvalidTransition},
		{"review a closed case", StatusClosed, EventMoveToReview, RoleJudge, "", ErrInvalidTransition},
		{"unknown event", StatusUnderReview, Event("bogus"), RoleAdmin, "", ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.current, tt.event, tt.role)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The role gate is checked before the status gate: a member poking at a case
// in the wrong state must see forbidden, not invalid transition.
func TestTransitionRoleGateFirst(t *testing.T) {
	_, err := Transition(StatusClosed, EventPublish, RoleMember)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestTransitionsStayInsideEnum(t *testing.T) {
	for ev, r := range transitions {
		assert.True(t, ValidStatus(r.to), "event %s targets unknown status %s", ev, r.to)
		for _, f := range r.from {
			assert.True(t, ValidStatus(f), "event %s fires from unknown status %s", ev, f)
			assert.False(t, IsTerminal(f), "event %s fires from terminal status %s", ev, f)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range Statuses() {
		switch s {
		case StatusVerificationFailed, StatusClosed, StatusRejected:
			assert.True(t, IsTerminal(s), "%s should be terminal", s)
		default:
			assert.False(t, IsTerminal(s), "%s should not be terminal", s)
		}
	}
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusUnderReview))
	assert.False(t, ValidStatus(Status("Pending")))
	assert.False(t, ValidStatus(Status("")))
}

func TestAuthorize(t *testing.T) {
	assert.True(t, Authorize(RoleJudge, RoleJudge, RoleAdmin))
	assert.True(t, Authorize(RoleAdmin, RoleJudge, RoleAdmin))
	assert.False(t, Authorize(RoleMember, RoleJudge, RoleAdmin))
	assert.False(t, Authorize("", RoleJudge))
}

func TestCanVote(t *testing.T) {
	assert.NoError(t, CanVote(StatusPublishedForVoting, RoleJudge))

	// voting is judge-only, admins included out
	assert.ErrorIs(t, CanVote(StatusPublishedForVoting, RoleAdmin), ErrForbidden)
	assert.ErrorIs(t, CanVote(StatusPublishedForVoting, RoleMember), ErrForbidden)

	assert.ErrorIs(t, CanVote(StatusUnderReview, RoleJudge), ErrVoteRejected)
	assert.ErrorIs(t, CanVote(StatusVerdictReached, RoleJudge), ErrVoteRejected)
}

func TestCanDelete(t *testing.T) {
	assert.NoError(t, CanDelete(StatusPendingVerification, RoleAdmin))
	assert.NoError(t, CanDelete(StatusPublishedForVoting, RoleJudge))
	assert.ErrorIs(t, CanDelete(StatusUnderReview, RoleMember), ErrForbidden)
	assert.ErrorIs(t, CanDelete(StatusClosed, RoleAdmin), ErrInvalidTransition)
	assert.ErrorIs(t, CanDelete(StatusRejected, RoleJudge), ErrInvalidTransition)
}

func TestCanUpdateVerdict(t *testing.T) {
	assert.NoError(t, CanUpdateVerdict(StatusPublishedForVoting, RoleJudge))
	assert.NoError(t, CanUpdateVerdict(StatusVerdictReached, RoleAdmin))
	assert.NoError(t, CanUpdateVerdict(StatusClosed, RoleJudge))
	assert.ErrorIs(t, CanUpdateVerdict(StatusUnderReview, RoleJudge), ErrInvalidTransition)
	assert.ErrorIs(t, CanUpdateVerdict(StatusPendingVerification, RoleAdmin), ErrInvalidTransition)
	assert.ErrorIs(t, CanUpdateVerdict(StatusPublishedForVoting, RoleMember), ErrForbidden)
}
