package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/resolvehq/tribunal-api/api/handlers"
	mocksdb "github.com/resolvehq/tribunal-api/databases/mocks"
	"github.com/resolvehq/tribunal-api/lifecycle"
	"github.com/resolvehq/tribunal-api/models"
)

func newUserHandler(udb *mocksdb.UserDatabase) handlers.User {
	return handlers.User{
		DB:       udb,
		BaseURL:  "https://tribunal.example.com",
		Notifier: &handlers.Notifier{Send: func(to, subject, plain, html string) error { return nil }},
	}
}

func validRegisterPayload() map[string]string {
	return map[string]string{
		"email":    "Resident@Example.com",
		"username": "resident42",
		"name":     "Sam Resident",
		"password": "hunter2hunter2",
	}
}

// The first account in an empty database becomes the bootstrap admin.
func TestUserCreateHandlerFirstUserIsAdmin(t *testing.T) {
	udb := &mocksdb.UserDatabase{}
	udb.On("FindOne", mock.Anything, bson.M{"user.email": "resident@example.com"}).
		Return(nil, mongo.ErrNoDocuments)
	udb.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)
	udb.On("InsertOne", mock.Anything, mock.MatchedBy(func(d models.UserDetails) bool {
		return d.Role == lifecycle.RoleAdmin && d.Email == "resident@example.com" && d.Password != "hunter2hunter2"
	})).Return("user-1", nil)

	u := newUserHandler(udb)
	req := requestAs(t, models.Actor{}, http.MethodPost, "/api/v1/user", validRegisterPayload())
	rr := httptest.NewRecorder()
	u.UserCreateHandler(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, lifecycle.RoleAdmin, resp["role"])
	udb.AssertExpectations(t)
}

func TestUserCreateHandlerLaterUsersAreMembers(t *testing.T) {
	udb := &mocksdb.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
	udb.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(12), nil)
	udb.On("InsertOne", mock.Anything, mock.MatchedBy(func(d models.UserDetails) bool {
		return d.Role == lifecycle.RoleMember
	})).Return("user-13", nil)

	u := newUserHandler(udb)
	req := requestAs(t, models.Actor{}, http.MethodPost, "/api/v1/user", validRegisterPayload())
	rr := httptest.NewRecorder()
	u.UserCreateHandler(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestUserCreateHandlerDuplicateEmail(t *testing.T) {
	udb := &mocksdb.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.User{ID: "user-1"}, nil)

	u := newUserHandler(udb)
	req := requestAs(t, models.Actor{}, http.MethodPost, "/api/v1/user", validRegisterPayload())
	rr := httptest.NewRecorder()
	u.UserCreateHandler(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	udb.AssertNotCalled(t, "InsertOne")
}

func TestUserCreateHandlerValidation(t *testing.T) {
	u := newUserHandler(&mocksdb.UserDatabase{})
	req := requestAs(t, models.Actor{}, http.MethodPost, "/api/v1/user",
		map[string]string{"email": "not-an-email", "password": "short"})
	rr := httptest.NewRecorder()
	u.UserCreateHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp models.ValidationErrorResponse
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "email")
	assert.Contains(t, resp.Fields, "username")
	assert.Contains(t, resp.Fields, "password")
}

func TestUserHandlerStripsSecrets(t *testing.T) {
	udb := &mocksdb.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(&models.User{
		ID: "user-1",
		Details: models.UserDetails{
			Email:              "resident@example.com",
			Username:           "resident42",
			Password:           "$2a$10$hash",
			ResetPasswordToken: "tok",
		},
	}, nil)

	u := newUserHandler(udb)
	req := requestAs(t, models.Actor{ID: "user-1", Role: lifecycle.RoleMember},
		http.MethodGet, "/api/v1/user/user-1", nil)
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-1"})
	rr := httptest.NewRecorder()
	u.UserHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got models.User
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Empty(t, got.Details.Password)
	assert.Empty(t, got.Details.ResetPasswordToken)
	assert.Equal(t, "resident42", got.Details.Username)
}

func TestUpdateUserByIDHandlerSelf(t *testing.T) {
	udb := &mocksdb.UserDatabase{}
	udb.On("UpdateOne", mock.Anything, bson.M{"_id": "user-1"}, mock.MatchedBy(func(update interface{}) bool {
		m, ok := update.(bson.M)
		if !ok {
			return false
		}
		set, ok := m["$set"].(bson.M)
		// only the supplied fields may be written
		_, hasName := set["user.name"]
		_, hasPhone := set["user.phone"]
		return ok && hasName && !hasPhone
	})).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	u := newUserHandler(udb)
	req := requestAs(t, models.Actor{ID: "user-1", Role: lifecycle.RoleMember},
		http.MethodPut, "/api/v1/user/user-1", map[string]string{"name": "Sam R."})
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-1"})
	rr := httptest.NewRecorder()
	u.UpdateUserByIDHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	udb.AssertExpectations(t)
}

func TestUpdateUserByIDHandlerOtherUserForbidden(t *testing.T) {
	u := newUserHandler(&mocksdb.UserDatabase{})
	req := requestAs(t, models.Actor{ID: "user-2", Role: lifecycle.RoleMember},
		http.MethodPut, "/api/v1/user/user-1", map[string]string{"name": "Impostor"})
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-1"})
	rr := httptest.NewRecorder()
	u.UpdateUserByIDHandler(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestUpdateUserRoleHandler(t *testing.T) {
	udb := &mocksdb.UserDatabase{}
	udb.On("UpdateOne", mock.Anything, bson.M{"_id": "user-2"}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	u := newUserHandler(udb)
	req := requestAs(t, models.Actor{ID: "admin-1", Role: lifecycle.RoleAdmin},
		http.MethodPut, "/api/v1/user/user-2/role", map[string]string{"role": lifecycle.RoleJudge})
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-2"})
	rr := httptest.NewRecorder()
	u.UpdateUserRoleHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, lifecycle.RoleJudge, resp["role"])
}

func TestUpdateUserRoleHandlerNonAdminForbidden(t *testing.T) {
	for _, role := range []string{lifecycle.RoleMember, lifecycle.RoleJudge} {
		u := newUserHandler(&mocksdb.UserDatabase{})
		req := requestAs(t, models.Actor{ID: "actor-1", Role: role},
			http.MethodPut, "/api/v1/user/user-2/role", map[string]string{"role": lifecycle.RoleAdmin})
		req = mux.SetURLVars(req, map[string]string{"user_id": "user-2"})
		rr := httptest.NewRecorder()
		u.UpdateUserRoleHandler(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code, "role %s must not grant roles", role)
	}
}

func TestUpdateUserRoleHandlerUnknownRole(t *testing.T) {
	u := newUserHandler(&mocksdb.UserDatabase{})
	req := requestAs(t, models.Actor{ID: "admin-1", Role: lifecycle.RoleAdmin},
		http.MethodPut, "/api/v1/user/user-2/role", map[string]string{"role": "chief-justice"})
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-2"})
	rr := httptest.NewRecorder()
	u.UpdateUserRoleHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// The forgot-password response must not reveal whether the address exists.
func TestForgotPasswordHandlerUniformResponse(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	known := &mocksdb.UserDatabase{}
	known.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.User{ID: "user-1", Details: models.UserDetails{Email: "resident@example.com"}}, nil)
	unknown := &mocksdb.UserDatabase{}
	unknown.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	var bodies []string
	for _, udb := range []*mocksdb.UserDatabase{known, unknown} {
		u := newUserHandler(udb)
		req := requestAs(t, models.Actor{}, http.MethodPost, "/api/v1/forgot-password",
			map[string]string{"email": "resident@example.com"})
		rr := httptest.NewRecorder()
		u.ForgotPasswordHandler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		bodies = append(bodies, rr.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1])
}

func TestResetPasswordHandlerRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	udb := &mocksdb.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.User{ID: "user-1", Details: models.UserDetails{Email: "resident@example.com"}}, nil)
	udb.On("UpdateOne", mock.Anything, bson.M{"_id": "user-1"}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	// capture the reset link from the outgoing mail
	sent := make(chan string, 1)
	u := handlers.User{
		DB:      udb,
		BaseURL: "https://tribunal.example.com",
		Notifier: &handlers.Notifier{Send: func(to, subject, plain, html string) error {
			sent <- plain
			return nil
		}},
	}

	req := requestAs(t, models.Actor{}, http.MethodPost, "/api/v1/forgot-password",
		map[string]string{"email": "resident@example.com"})
	rr := httptest.NewRecorder()
	u.ForgotPasswordHandler(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var link string
	select {
	case link = <-sent:
	case <-time.After(time.Second):
		t.Fatal("reset mail was never sent")
	}
	start := strings.Index(link, "token=")
	assert.GreaterOrEqual(t, start, 0)
	token := strings.Fields(link[start+len("token="):])[0]

	req = requestAs(t, models.Actor{}, http.MethodPost, "/api/v1/reset-password",
		map[string]string{"token": token, "password": "a-brand-new-password"})
	rr = httptest.NewRecorder()
	u.ResetPasswordHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	udb.AssertCalled(t, "UpdateOne", mock.Anything, bson.M{"_id": "user-1"}, mock.Anything)
}

func TestResetPasswordHandlerBadToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	u := newUserHandler(&mocksdb.UserDatabase{})
	req := requestAs(t, models.Actor{}, http.MethodPost, "/api/v1/reset-password",
		map[string]string{"token": "not.a.jwt", "password": "a-brand-new-password"})
	rr := httptest.NewRecorder()
	u.ResetPasswordHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
