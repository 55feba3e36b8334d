package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/resolvehq/tribunal-api/api"
	"github.com/resolvehq/tribunal-api/config"
	"github.com/resolvehq/tribunal-api/lifecycle"
	"github.com/resolvehq/tribunal-api/models"
)

type castVotePayload struct {
	Choice string `json:"choice"` // "yes" or "no"
}

// CastVoteHandler records a judge's vote on a published case. The uniqueness
// rule (one vote per voter per case) is enforced by the write filter itself,
// so two concurrent votes by the same judge cannot both land.
func (c Case) CastVoteHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.Actor(r)
	if !ok {
		config.ErrorStatus("missing actor", http.StatusUnauthorized, w, errors.New("unauthenticated"))
		return
	}

	var payload castVotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	caseDoc, bID, done := c.fetchCase(w, r)
	if done {
		return
	}

	if err := lifecycle.CanVote(lifecycle.Status(caseDoc.Details.Status), actor.Role); err != nil {
		writeLifecycleError(w, err)
		return
	}
	if err := lifecycle.ValidateVoteChoice(payload.Choice); err != nil {
		writeLifecycleError(w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := c.DB.UpdateOne(ctx,
		bson.M{
			"_id":                bID,
			"case.status":        string(lifecycle.StatusPublishedForVoting),
			"case.votes.voterId": bson.M{"$ne": actor.ID},
		},
		bson.M{
			"$push": bson.M{"case.votes": models.Vote{Choice: payload.Choice, VoterID: actor.ID}},
			"$set":  bson.M{"case.updatedAt": primitive.NewDateTimeFromTime(time.Now())},
		})
	if err != nil {
		config.ErrorStatus("failed to record vote", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		// already voted, or the case left PublishedForVoting in the meantime
		writeLifecycleError(w, lifecycle.ErrVoteRejected)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"message": "vote recorded"})
}

// GetVotesHandler returns the aggregate tally for a case, summed from the
// vote list on read
func (c Case) GetVotesHandler(w http.ResponseWriter, r *http.Request) {
	caseDoc, _, done := c.fetchCase(w, r)
	if done {
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(lifecycle.Tally(caseDoc.Details.Votes))
}
