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

type addCommentPayload struct {
	Text string `json:"text"`
}

// AddCommentHandler appends a comment to a case's discussion. Any
// authenticated user may comment; judge and admin authorship is flagged on
// the entry so it can be badged. Comments are append-only.
func (c Case) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.Actor(r)
	if !ok {
		config.ErrorStatus("missing actor", http.StatusUnauthorized, w, errors.New("unauthenticated"))
		return
	}

	var payload addCommentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := lifecycle.ValidateCommentText(payload.Text); err != nil {
		writeLifecycleError(w, err)
		return
	}

	bID, err := caseIDFromRequest(r)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	comment := models.Comment{
		Text:      payload.Text,
		AuthorID:  actor.ID,
		IsJudge:   actor.Role == lifecycle.RoleJudge,
		IsAdmin:   actor.Role == lifecycle.RoleAdmin,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := c.DB.UpdateOne(ctx,
		bson.M{"_id": bID},
		bson.M{"$push": bson.M{"case.comments": comment}})
	if err != nil {
		config.ErrorStatus("failed to add comment", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		writeLifecycleError(w, lifecycle.ErrNotFound)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"message": "comment added"})
}
