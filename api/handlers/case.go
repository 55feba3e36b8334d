package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/resolvehq/tribunal-api/api"
	"github.com/resolvehq/tribunal-api/config"
	"github.com/resolvehq/tribunal-api/databases"
	"github.com/resolvehq/tribunal-api/lifecycle"
	"github.com/resolvehq/tribunal-api/models"
	templates "github.com/resolvehq/tribunal-api/templates/html"
)

// Case handles case-related requests
type Case struct {
	DB             databases.CaseDatabase
	UDB            databases.UserDatabase
	Limiter        *api.RateLimiter
	Notifier       *Notifier
	Hub            *CaseHub
	ResponseWindow time.Duration
}

type createCasePayload struct {
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Category         string            `json:"category"`
	Priority         string            `json:"priority"`
	Tags             []string          `json:"tags"`
	EvidenceRef      string            `json:"evidenceRef"`
	EvidencePublicID string            `json:"evidencePublicId"`
	TargetInfo       models.TargetInfo `json:"targetInfo"`
}

// CreateCaseHandler files a new case. Members only; creation is rate limited
// per actor. If the free-text target info resolves unambiguously to a single
// user the case skips manual verification and goes straight to TargetNotified.
func (c Case) CreateCaseHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.Actor(r)
	if !ok {
		config.ErrorStatus("missing actor", http.StatusUnauthorized, w, errors.New("unauthenticated"))
		return
	}
	if actor.Role != lifecycle.RoleMember {
		writeLifecycleError(w, lifecycle.ErrForbidden)
		return
	}

	lctx, err := c.Limiter.Allow(r.Context(), api.RateLimitKey(r))
	if err != nil {
		config.ErrorStatus("rate limiter failure", http.StatusInternalServerError, w, err)
		return
	}
	api.SetRateLimitHeaders(w, lctx)
	if lctx.Reached {
		writeLifecycleError(w, lifecycle.ErrRateLimited)
		return
	}

	var payload createCasePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	details := models.CaseDetails{
		Title:            payload.Title,
		Description:      payload.Description,
		Category:         payload.Category,
		Priority:         payload.Priority,
		Tags:             payload.Tags,
		EvidenceRef:      payload.EvidenceRef,
		EvidencePublicID: payload.EvidencePublicID,
		FilerID:          actor.ID,
		TargetInfo:       payload.TargetInfo,
		Status:           string(lifecycle.StatusPendingVerification),
		Verification:     models.CaseVerification{Status: "pending"},
		Comments:         []models.Comment{},
		Votes:            []models.Vote{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := lifecycle.ValidateCasePayload(details); err != nil {
		writeLifecycleError(w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// attempt automatic target resolution before first persist
	target, err := lifecycle.MatchTarget(ctx, c.UDB, details.TargetInfo)
	if err != nil {
		config.ErrorStatus("failed to match target", http.StatusInternalServerError, w, err)
		return
	}
	if target != nil {
		details.Status = string(lifecycle.StatusTargetNotified)
		details.Verification = models.CaseVerification{
			Status:           "auto",
			VerifiedTargetID: target.ID,
			VerifiedAt:       now,
		}
		details.ResponseDeadline = primitive.NewDateTimeFromTime(time.Now().Add(c.ResponseWindow))
	}

	caseDoc := models.Case{
		ID:      primitive.NewObjectID(),
		Details: details,
	}
	if _, err := c.DB.InsertOne(ctx, caseDoc); err != nil {
		config.ErrorStatus("failed to create case", http.StatusInternalServerError, w, err)
		return
	}

	if target != nil {
		c.notifyTarget(*target, caseDoc)
		c.Hub.BroadcastCaseEvent("case-target-notified", caseDoc.ID.Hex(), details.Status)
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "case created successfully",
		"id":      caseDoc.ID.Hex(),
		"status":  details.Status,
	})
}

// CaseByIDHandler returns a case by ID
func (c Case) CaseByIDHandler(w http.ResponseWriter, r *http.Request) {
	caseDoc, _, done := c.fetchCase(w, r)
	if done {
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(caseDoc)
}

// CasesHandler returns paginated cases filtered by status, category, filer or target
func (c Case) CasesHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	limit64 := int64(limit)
	page := getPage(0, r)
	skip64 := int64(page * limit)

	filter := bson.M{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["case.status"] = status
	}
	if category := r.URL.Query().Get("category"); category != "" {
		filter["case.category"] = category
	}
	if filer := r.URL.Query().Get("filer"); filer != "" {
		filter["case.filerID"] = filer
	}
	if target := r.URL.Query().Get("target"); target != "" {
		filter["case.verification.verifiedTargetID"] = target
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.DB.Find(ctx, filter, &options.FindOptions{
		Limit: &limit64,
		Skip:  &skip64,
		Sort:  bson.M{"_id": -1},
	})
	if err != nil {
		config.ErrorStatus("failed to get cases", http.StatusNotFound, w, err)
		return
	}
	if dbResp == nil {
		dbResp = []models.Case{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// PendingVerificationsHandler lists cases awaiting manual target verification
func (c Case) PendingVerificationsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.Actor(r)
	if !ok || !lifecycle.Authorize(actor.Role, lifecycle.RoleJudge, lifecycle.RoleAdmin) {
		writeLifecycleError(w, lifecycle.ErrForbidden)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.DB.Find(ctx, bson.M{"case.status": string(lifecycle.StatusPendingVerification)})
	if err != nil {
		config.ErrorStatus("failed to get pending verifications", http.StatusNotFound, w, err)
		return
	}
	if dbResp == nil {
		dbResp = []models.Case{}
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dbResp)
}

// UpdateCaseStatusHandler is the administrative status override: judge/admin
// only, any member of the status enum accepted, no table gating. The
// lifecycle endpoints are the regular path; this exists for corrections.
func (c Case) UpdateCaseStatusHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.Actor(r)
	if !ok || !lifecycle.Authorize(actor.Role, lifecycle.RoleJudge, lifecycle.RoleAdmin) {
		writeLifecycleError(w, lifecycle.ErrForbidden)
		return
	}

	bID, err := caseIDFromRequest(r)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if !lifecycle.ValidStatus(lifecycle.Status(body.Status)) {
		writeLifecycleError(w, &lifecycle.ValidationError{Fields: map[string]string{"status": "unknown status"}})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := c.DB.UpdateOne(ctx, bson.M{"_id": bID}, bson.M{"$set": bson.M{
		"case.status":    body.Status,
		"case.updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to update case status", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		writeLifecycleError(w, lifecycle.ErrNotFound)
		return
	}

	c.Hub.BroadcastCaseEvent("case-status-updated", bID.Hex(), body.Status)
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"id": bID.Hex(), "status": body.Status})
}

// UpdateCaseVerdictHandler records the final decision on a case. Only
// meaningful once the case has been published: on a PublishedForVoting case it
// also moves the status to VerdictReached; on a VerdictReached or Closed case
// it corrects the verdict value in place; anything earlier is refused.
func (c Case) UpdateCaseVerdictHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.Actor(r)
	if !ok {
		config.ErrorStatus("missing actor", http.StatusUnauthorized, w, errors.New("unauthenticated"))
		return
	}

	var body struct {
		Verdict string `json:"verdict"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	caseDoc, bID, done := c.fetchCase(w, r)
	if done {
		return
	}
	current := lifecycle.Status(caseDoc.Details.Status)

	if err := lifecycle.CanUpdateVerdict(current, actor.Role); err != nil {
		writeLifecycleError(w, err)
		return
	}
	if err := lifecycle.ValidateVerdict(body.Verdict); err != nil {
		writeLifecycleError(w, err)
		return
	}

	next := current
	if current == lifecycle.StatusPublishedForVoting {
		next = lifecycle.StatusVerdictReached
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := c.DB.UpdateOne(ctx,
		bson.M{"_id": bID, "case.status": string(current)},
		bson.M{"$set": bson.M{
			"case.status":    string(next),
			"case.verdict":   body.Verdict,
			"case.updatedAt": primitive.NewDateTimeFromTime(time.Now()),
		}})
	if err != nil {
		config.ErrorStatus("failed to update verdict", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		// a concurrent transition changed the status under us
		writeLifecycleError(w, lifecycle.ErrConflict)
		return
	}

	c.Hub.BroadcastCaseEvent("case-verdict-updated", bID.Hex(), string(next))
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"id": bID.Hex(), "status": string(next), "verdict": body.Verdict})
}

// MoveToReviewHandler moves a responded or expired case into UnderReview
func (c Case) MoveToReviewHandler(w http.ResponseWriter, r *http.Request) {
	c.applyTransition(w, r, lifecycle.EventMoveToReview, nil, nil)
}

// PublishCaseHandler publishes a reviewed case for judge voting and notifies the filer
func (c Case) PublishCaseHandler(w http.ResponseWriter, r *http.Request) {
	c.applyTransition(w, r, lifecycle.EventPublish, nil, func(caseDoc models.Case, next lifecycle.Status) {
		c.notifyFiler(caseDoc)
		c.Hub.BroadcastCaseEvent("case-published", caseDoc.ID.Hex(), string(next))
	})
}

// RejectCaseHandler rejects a reviewed case
func (c Case) RejectCaseHandler(w http.ResponseWriter, r *http.Request) {
	c.applyTransition(w, r, lifecycle.EventRejectCase, nil, func(caseDoc models.Case, next lifecycle.Status) {
		c.Hub.BroadcastCaseEvent("case-rejected", caseDoc.ID.Hex(), string(next))
	})
}

// CloseCaseHandler closes a case once a verdict has been reached
func (c Case) CloseCaseHandler(w http.ResponseWriter, r *http.Request) {
	c.applyTransition(w, r, lifecycle.EventClose, nil, func(caseDoc models.Case, next lifecycle.Status) {
		c.Hub.BroadcastCaseEvent("case-closed", caseDoc.ID.Hex(), string(next))
	})
}

// DeleteCaseHandler hard-deletes a non-terminal case. The cloudinary evidence
// asset is destroyed best-effort after the record is gone.
func (c Case) DeleteCaseHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.Actor(r)
	if !ok {
		config.ErrorStatus("missing actor", http.StatusUnauthorized, w, errors.New("unauthenticated"))
		return
	}

	caseDoc, bID, done := c.fetchCase(w, r)
	if done {
		return
	}

	if err := lifecycle.CanDelete(lifecycle.Status(caseDoc.Details.Status), actor.Role); err != nil {
		writeLifecycleError(w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deleted, err := c.DB.DeleteOne(ctx, bson.M{"_id": bID})
	if err != nil {
		config.ErrorStatus("failed to delete case", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		writeLifecycleError(w, lifecycle.ErrNotFound)
		return
	}

	if caseDoc.Details.EvidencePublicID != "" {
		go destroyEvidenceAsset(caseDoc.Details.EvidencePublicID)
	}
	c.Hub.BroadcastCaseEvent("case-deleted", bID.Hex(), caseDoc.Details.Status)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "case deleted successfully"})
}

// applyTransition runs the shared transition flow: load the case, validate the
// event against the table, then persist with the validated status in the
// filter so a concurrent transition on the same case loses cleanly.
func (c Case) applyTransition(w http.ResponseWriter, r *http.Request, ev lifecycle.Event,
	extra bson.M, after func(models.Case, lifecycle.Status)) {

	actor, ok := api.Actor(r)
	if !ok {
		config.ErrorStatus("missing actor", http.StatusUnauthorized, w, errors.New("unauthenticated"))
		return
	}

	caseDoc, bID, done := c.fetchCase(w, r)
	if done {
		return
	}
	current := lifecycle.Status(caseDoc.Details.Status)

	next, err := lifecycle.Transition(current, ev, actor.Role)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	set := bson.M{
		"case.status":    string(next),
		"case.updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}
	for k, v := range extra {
		set[k] = v
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := c.DB.UpdateOne(ctx,
		bson.M{"_id": bID, "case.status": string(current)},
		bson.M{"$set": set})
	if err != nil {
		config.ErrorStatus("failed to update case", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		// lost the race against a concurrent transition; nothing was written
		writeLifecycleError(w, lifecycle.ErrConflict)
		return
	}

	if after != nil {
		after(*caseDoc, next)
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"id": bID.Hex(), "status": string(next)})
}

// fetchCase loads the case named in the route. On failure it writes the error
// response and reports done=true.
func (c Case) fetchCase(w http.ResponseWriter, r *http.Request) (*models.Case, primitive.ObjectID, bool) {
	bID, err := caseIDFromRequest(r)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return nil, primitive.NilObjectID, true
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	caseDoc, err := c.DB.FindOne(ctx, bson.M{"_id": bID})
	if err != nil {
		config.ErrorStatus("failed to find case", http.StatusNotFound, w, err)
		return nil, primitive.NilObjectID, true
	}
	return caseDoc, bID, false
}

// notifyTarget emails the verified target that a case names them. Detached and
// best-effort: failure is logged, never surfaced to the triggering request.
func (c Case) notifyTarget(target models.User, caseDoc models.Case) {
	if target.Details.Email == "" {
		zap.S().Warnw("verified target has no email, skipping notification", "caseID", caseDoc.ID.Hex())
		return
	}
	deadline := caseDoc.Details.ResponseDeadline.Time().Format("January 2, 2006")
	plain := fmt.Sprintf("You have been named in tribunal case %q. You may respond until %s.",
		caseDoc.Details.Title, deadline)
	html := templates.RenderTargetNotified(caseDoc.Details.Title, deadline)
	c.Notifier.NotifyAsync(target.Details.Email, "You have been named in a case", plain, html)
}

// notifyFiler emails the filer that their case was published for voting
func (c Case) notifyFiler(caseDoc models.Case) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				zap.S().Errorw("panic in filer notification", "caseID", caseDoc.ID.Hex(), "panic", rec)
			}
		}()
		ctx, cancel := api.WithQueryTimeout(context.Background())
		defer cancel()
		filer, err := c.UDB.FindOne(ctx, bson.M{"_id": caseDoc.Details.FilerID})
		if err != nil {
			zap.S().Errorw("failed to load filer for notification", "caseID", caseDoc.ID.Hex(), "error", err)
			return
		}
		plain := fmt.Sprintf("Your case %q is now published for voting.", caseDoc.Details.Title)
		html := templates.RenderCasePublished(caseDoc.Details.Title)
		c.Notifier.NotifyAsync(filer.Details.Email, "Your case is now published for voting", plain, html)
	}()
}

func caseIDFromRequest(r *http.Request) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(mux.Vars(r)["case_id"])
}

// writeLifecycleError maps the core error taxonomy onto HTTP responses
func writeLifecycleError(w http.ResponseWriter, err error) {
	var vErr *lifecycle.ValidationError
	if errors.As(err, &vErr) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ValidationErrorResponse{
			Error:  "validation failed",
			Fields: vErr.Fields,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lifecycle.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrVoteRejected),
		errors.Is(err, lifecycle.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, lifecycle.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lifecycle.ErrRateLimited):
		status = http.StatusTooManyRequests
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func getPage(page int, r *http.Request) int {
	if r.URL.Query().Get("page") == "" {
		return page
	}
	parsed, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		zap.S().Errorf("error parsing page number: %v", err)
		return page
	}
	if parsed < 0 {
		zap.S().Warnf("cannot process negative page number, got: %v", parsed)
		return 0
	}
	return parsed
}
