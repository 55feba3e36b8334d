package lifecycle

import "github.com/resolvehq/tribunal-api/models"

// Tally sums a case's vote list into aggregate yes/no counts. Computed on
// read rather than cached so the tally can never drift from the vote list.
func Tally(votes []models.Vote) models.VoteTally {
	t := models.VoteTally{}
	for _, v := range votes {
		switch v.Choice {
		case "yes":
			t.Yes++
		case "no":
			t.No++
		}
		t.Total++
	}
	return t
}

// HasVoted reports whether the voter already has a vote recorded on the case
func HasVoted(votes []models.Vote, voterID string) bool {
	for _, v := range votes {
		if v.VoterID == voterID {
			return true
		}
	}
	return false
}
