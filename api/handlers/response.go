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
)

type targetResponsePayload struct {
	Text string `json:"text"`
}

// SubmitTargetResponseHandler records the named target's written response to a
// case. Only the resolved target user may respond, only while the case sits in
// TargetNotified, and only once — the status filter on the write enforces the
// single-response rule even under concurrent submissions.
func (c Case) SubmitTargetResponseHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.Actor(r)
	if !ok {
		config.ErrorStatus("missing actor", http.StatusUnauthorized, w, errors.New("unauthenticated"))
		return
	}

	var payload targetResponsePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	caseDoc, bID, done := c.fetchCase(w, r)
	if done {
		return
	}

	if caseDoc.Details.Verification.VerifiedTargetID == "" ||
		caseDoc.Details.Verification.VerifiedTargetID != actor.ID {
		writeLifecycleError(w, lifecycle.ErrForbidden)
		return
	}

	current := lifecycle.Status(caseDoc.Details.Status)
	next, err := lifecycle.Transition(current, lifecycle.EventSubmitResponse, actor.Role)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	// the response itself is validated only after the state and actor gates,
	// so a rejected payload leaves the case untouched in TargetNotified
	if err := lifecycle.ValidateResponseText(payload.Text); err != nil {
		writeLifecycleError(w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := c.DB.UpdateOne(ctx,
		bson.M{"_id": bID, "case.status": string(current), "case.targetResponse.received": false},
		bson.M{"$set": bson.M{
			"case.status":                     string(next),
			"case.targetResponse.received":    true,
			"case.targetResponse.text":        payload.Text,
			"case.targetResponse.respondedAt": now,
			"case.updatedAt":                  now,
		}})
	if err != nil {
		config.ErrorStatus("failed to record response", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		writeLifecycleError(w, lifecycle.ErrConflict)
		return
	}

	c.Hub.BroadcastCaseEvent("case-response-received", bID.Hex(), string(next))
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"id": bID.Hex(), "status": string(next)})
}
