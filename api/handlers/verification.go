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

type verifyCasePayload struct {
	Action           string `json:"action"` // "verify" or "reject"
	VerifiedTargetID string `json:"verifiedTargetId"`
	Notes            string `json:"notes"`
}

// VerifyCaseHandler records a judge/admin's manual verification decision on a
// PendingVerification case. A verify decision requires the definitive target
// user id and moves the case to TargetNotified; a reject decision ends the
// case at VerificationFailed. A manual decision overrides any earlier
// automatic match.
func (c Case) VerifyCaseHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.Actor(r)
	if !ok {
		config.ErrorStatus("missing actor", http.StatusUnauthorized, w, errors.New("unauthenticated"))
		return
	}

	var payload verifyCasePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())

	switch payload.Action {
	case "reject":
		extra := bson.M{
			"case.verification.status":     "rejected",
			"case.verification.notes":      payload.Notes,
			"case.verification.verifiedBy": actor.ID,
			"case.verification.verifiedAt": now,
		}
		c.applyTransition(w, r, lifecycle.EventRejectTarget, extra, nil)

	case "verify":
		if payload.VerifiedTargetID == "" {
			writeLifecycleError(w, &lifecycle.ValidationError{Fields: map[string]string{
				"verifiedTargetId": "required for a verify decision",
			}})
			return
		}

		ctx, cancel := api.WithQueryTimeout(r.Context())
		defer cancel()
		target, err := c.UDB.FindOne(ctx, bson.M{"_id": payload.VerifiedTargetID})
		if err != nil {
			writeLifecycleError(w, lifecycle.ErrNotFound)
			return
		}

		extra := bson.M{
			"case.verification.status":           "verified",
			"case.verification.notes":            payload.Notes,
			"case.verification.verifiedTargetID": target.ID,
			"case.verification.verifiedBy":       actor.ID,
			"case.verification.verifiedAt":       now,
			"case.responseDeadline":              primitive.NewDateTimeFromTime(time.Now().Add(c.ResponseWindow)),
		}
		c.applyTransition(w, r, lifecycle.EventVerify, extra, func(caseDoc models.Case, next lifecycle.Status) {
			caseDoc.Details.ResponseDeadline = extra["case.responseDeadline"].(primitive.DateTime)
			c.notifyTarget(*target, caseDoc)
			c.Hub.BroadcastCaseEvent("case-target-notified", caseDoc.ID.Hex(), string(next))
		})

	default:
		writeLifecycleError(w, &lifecycle.ValidationError{Fields: map[string]string{
			"action": "must be verify or reject",
		}})
	}
}
