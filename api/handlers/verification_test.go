package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	mocksdb "github.com/resolvehq/tribunal-api/databases/mocks"
	"github.com/resolvehq/tribunal-api/lifecycle"
	"github.com/resolvehq/tribunal-api/models"
)

func TestVerifyCaseHandlerVerify(t *testing.T) {
	caseDoc := caseInStatus(lifecycle.StatusPendingVerification)
	cdb := &mocksdb.CaseDatabase{}
	udb := &mocksdb.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.User{ID: "target-1", Details: models.UserDetails{Email: "neighbour@example.com"}}, nil)
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(&caseDoc, nil)
	cdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	c := newCaseHandler(cdb, udb)
	req := requestAs(t, models.Actor{ID: "judge-1", Role: lifecycle.RoleJudge},
		http.MethodPost, fmt.Sprintf("/api/v1/case/%s/verify", caseDoc.ID.Hex()),
		map[string]string{"action": "verify", "verifiedTargetId": "target-1"})
	req = mux.SetURLVars(req, map[string]string{"case_id": caseDoc.ID.Hex()})
	rr := httptest.NewRecorder()
	c.VerifyCaseHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, string(lifecycle.StatusTargetNotified), resp["status"])
}

func TestVerifyCaseHandlerReject(t *testing.T) {
	caseDoc := caseInStatus(lifecycle.StatusPendingVerification)
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(&caseDoc, nil)
	cdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	c := newCaseHandler(cdb, &mocksdb.UserDatabase{})
	req := requestAs(t, models.Actor{ID: "admin-1", Role: lifecycle.RoleAdmin},
		http.MethodPost, fmt.Sprintf("/api/v1/case/%s/verify", caseDoc.ID.Hex()),
		map[string]string{"action": "reject", "notes": "could not identify a resident"})
	req = mux.SetURLVars(req, map[string]string{"case_id": caseDoc.ID.Hex()})
	rr := httptest.NewRecorder()
	c.VerifyCaseHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, string(lifecycle.StatusVerificationFailed), resp["status"])
}

func TestVerifyCaseHandlerMemberForbidden(t *testing.T) {
	caseDoc := caseInStatus(lifecycle.StatusPendingVerification)
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(&caseDoc, nil)

	c := newCaseHandler(cdb, &mocksdb.UserDatabase{})
	req := requestAs(t, models.Actor{ID: "member-1", Role: lifecycle.RoleMember},
		http.MethodPost, fmt.Sprintf("/api/v1/case/%s/verify", caseDoc.ID.Hex()),
		map[string]string{"action": "reject"})
	req = mux.SetURLVars(req, map[string]string{"case_id": caseDoc.ID.Hex()})
	rr := httptest.NewRecorder()
	c.VerifyCaseHandler(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	cdb.AssertNotCalled(t, "UpdateOne")
}

func TestVerifyCaseHandlerMissingTargetID(t *testing.T) {
	caseDoc := caseInStatus(lifecycle.StatusPendingVerification)
	cdb := &mocksdb.CaseDatabase{}

	c := newCaseHandler(cdb, &mocksdb.UserDatabase{})
	req := requestAs(t, models.Actor{ID: "judge-1", Role: lifecycle.RoleJudge},
		http.MethodPost, fmt.Sprintf("/api/v1/case/%s/verify", caseDoc.ID.Hex()),
		map[string]string{"action": "verify"})
	req = mux.SetURLVars(req, map[string]string{"case_id": caseDoc.ID.Hex()})
	rr := httptest.NewRecorder()
	c.VerifyCaseHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp models.ValidationErrorResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "verifiedTargetId")
}

func TestVerifyCaseHandlerUnknownTarget(t *testing.T) {
	caseDoc := caseInStatus(lifecycle.StatusPendingVerification)
	cdb := &mocksdb.CaseDatabase{}
	udb := &mocksdb.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).
		Return(nil, mongo.ErrNoDocuments)

	c := newCaseHandler(cdb, udb)
	req := requestAs(t, models.Actor{ID: "judge-1", Role: lifecycle.RoleJudge},
		http.MethodPost, fmt.Sprintf("/api/v1/case/%s/verify", caseDoc.ID.Hex()),
		map[string]string{"action": "verify", "verifiedTargetId": "ghost"})
	req = mux.SetURLVars(req, map[string]string{"case_id": caseDoc.ID.Hex()})
	rr := httptest.NewRecorder()
	c.VerifyCaseHandler(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	cdb.AssertNotCalled(t, "UpdateOne")
}

func TestVerifyCaseHandlerUnknownAction(t *testing.T) {
	caseDoc := caseInStatus(lifecycle.StatusPendingVerification)
	c := newCaseHandler(&mocksdb.CaseDatabase{}, &mocksdb.UserDatabase{})
	req := requestAs(t, models.Actor{ID: "judge-1", Role: lifecycle.RoleJudge},
		http.MethodPost, fmt.Sprintf("/api/v1/case/%s/verify", caseDoc.ID.Hex()),
		map[string]string{"action": "escalate"})
	req = mux.SetURLVars(req, map[string]string{"case_id": caseDoc.ID.Hex()})
	rr := httptest.NewRecorder()
	c.VerifyCaseHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
