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

	"github.com/resolvehq/tribunal-api/api/handlers"
	mocksdb "github.com/resolvehq/tribunal-api/databases/mocks"
	"github.com/resolvehq/tribunal-api/lifecycle"
	"github.com/resolvehq/tribunal-api/models"
)

func TestSuggestVerdictHandler(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var payload map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.NotEmpty(t, payload["messages"])
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "The complaint appears substantiated."}},
			},
		})
	}))
	defer upstream.Close()
	t.Setenv("SUGGESTION_API_URL", upstream.URL)

	caseDoc := caseInStatus(lifecycle.StatusUnderReview)
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(&caseDoc, nil)

	s := handlers.Suggestion{DB: cdb}
	req := requestAs(t, models.Actor{ID: "judge-1", Role: lifecycle.RoleJudge},
		http.MethodGet, fmt.Sprintf("/api/v1/case/%s/suggest-verdict", caseDoc.ID.Hex()), nil)
	req = mux.SetURLVars(req, map[string]string{"case_id": caseDoc.ID.Hex()})
	rr := httptest.NewRecorder()
	s.SuggestVerdictHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "The complaint appears substantiated.", resp["suggestion"])
}

// Judges still get a response when the AI service is unreachable.
func TestSuggestVerdictHandlerFallsBackToPlaceholder(t *testing.T) {
	t.Setenv("SUGGESTION_API_URL", "")

	caseDoc := caseInStatus(lifecycle.StatusUnderReview)
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("FindOne", mock.Anything, mock.Anything).Return(&caseDoc, nil)

	s := handlers.Suggestion{DB: cdb}
	req := requestAs(t, models.Actor{ID: "judge-1", Role: lifecycle.RoleJudge},
		http.MethodGet, fmt.Sprintf("/api/v1/case/%s/suggest-verdict", caseDoc.ID.Hex()), nil)
	req = mux.SetURLVars(req, map[string]string{"case_id": caseDoc.ID.Hex()})
	rr := httptest.NewRecorder()
	s.SuggestVerdictHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "no suggestion available", resp["suggestion"])
}

func TestSuggestVerdictHandlerMemberForbidden(t *testing.T) {
	s := handlers.Suggestion{DB: &mocksdb.CaseDatabase{}}
	req := requestAs(t, models.Actor{ID: "member-1", Role: lifecycle.RoleMember},
		http.MethodGet, "/api/v1/case/abc/suggest-verdict", nil)
	rr := httptest.NewRecorder()
	s.SuggestVerdictHandler(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}
