package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/resolvehq/tribunal-api/api"
	"github.com/resolvehq/tribunal-api/config"
	"github.com/resolvehq/tribunal-api/databases"
	"github.com/resolvehq/tribunal-api/lifecycle"
	"github.com/resolvehq/tribunal-api/models"
	templates "github.com/resolvehq/tribunal-api/templates/html"
)

// User handles user-related requests
type User struct {
	DB       databases.UserDatabase
	BaseURL  string
	Notifier *Notifier
}

type createUserPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Building string `json:"building"`
	Flat     string `json:"flat"`
}

// UserCreateHandler registers a new user. Everyone registers as a member; the
// very first account in an empty database becomes the bootstrap admin so that
// role grants have somewhere to start from.
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	var payload createUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	email := strings.TrimSpace(strings.ToLower(payload.Email))
	fields := map[string]string{}
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "a valid email is required"
	}
	if strings.TrimSpace(payload.Username) == "" {
		fields["username"] = "username is required"
	}
	if len(payload.Password) < 8 {
		fields["password"] = "password must be at least 8 characters"
	}
	if len(fields) > 0 {
		writeLifecycleError(w, &lifecycle.ValidationError{Fields: fields})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if existing, err := u.DB.FindOne(ctx, bson.M{"user.email": email}); err == nil && existing != nil {
		config.ErrorStatus("email already registered", http.StatusConflict, w, errors.New("duplicate email"))
		return
	}

	role := lifecycle.RoleMember
	count, err := u.DB.CountDocuments(ctx, bson.M{})
	if err != nil {
		config.ErrorStatus("failed to count users", http.StatusInternalServerError, w, err)
		return
	}
	if count == 0 {
		role = lifecycle.RoleAdmin
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	insertedID, err := u.DB.InsertOne(ctx, models.UserDetails{
		Email:     email,
		Username:  strings.TrimSpace(payload.Username),
		Name:      strings.TrimSpace(payload.Name),
		Password:  string(hash),
		Role:      role,
		Phone:     payload.Phone,
		Building:  payload.Building,
		Flat:      payload.Flat,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		config.ErrorStatus("failed to create user", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "user created successfully",
		"id":      insertedID,
		"role":    role,
	})
}

// UserHandler returns a user by ID with the password hash stripped
func (u User) UserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := u.DB.FindOne(ctx, bson.M{"_id": userID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}
	dbResp.Details.Password = ""
	dbResp.Details.ResetPasswordToken = ""

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dbResp)
}

type updateUserPayload struct {
	Name           *string `json:"name"`
	Phone          *string `json:"phone"`
	Building       *string `json:"building"`
	Flat           *string `json:"flat"`
	ProfilePicture *string `json:"profilePicture"`
}

// UpdateUserByIDHandler updates contact details. Users may edit their own
// profile; admins may edit anyone's.
func (u User) UpdateUserByIDHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.Actor(r)
	if !ok {
		config.ErrorStatus("missing actor", http.StatusUnauthorized, w, errors.New("unauthenticated"))
		return
	}
	userID := mux.Vars(r)["user_id"]
	if actor.ID != userID && actor.Role != lifecycle.RoleAdmin {
		writeLifecycleError(w, lifecycle.ErrForbidden)
		return
	}

	var payload updateUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	set := bson.M{"user.updatedAt": primitive.NewDateTimeFromTime(time.Now())}
	if payload.Name != nil {
		set["user.name"] = *payload.Name
	}
	if payload.Phone != nil {
		set["user.phone"] = *payload.Phone
	}
	if payload.Building != nil {
		set["user.building"] = *payload.Building
	}
	if payload.Flat != nil {
		set["user.flat"] = *payload.Flat
	}
	if payload.ProfilePicture != nil {
		set["user.profilePicture"] = *payload.ProfilePicture
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := u.DB.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		config.ErrorStatus("failed to update user", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		writeLifecycleError(w, lifecycle.ErrNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "user updated successfully"})
}

// UpdateUserRoleHandler grants or revokes roles. Admin only.
func (u User) UpdateUserRoleHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.Actor(r)
	if !ok || actor.Role != lifecycle.RoleAdmin {
		writeLifecycleError(w, lifecycle.ErrForbidden)
		return
	}

	var body struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	switch body.Role {
	case lifecycle.RoleMember, lifecycle.RoleJudge, lifecycle.RoleAdmin:
	default:
		writeLifecycleError(w, &lifecycle.ValidationError{Fields: map[string]string{"role": "unknown role"}})
		return
	}

	userID := mux.Vars(r)["user_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := u.DB.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{
		"user.role":      body.Role,
		"user.updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to update user role", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		writeLifecycleError(w, lifecycle.ErrNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"id": userID, "role": body.Role})
}

// ForgotPasswordHandler emails a reset link if the address is registered. The
// response is the same either way so the endpoint cannot be used to probe for
// accounts.
func (u User) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	email := strings.TrimSpace(strings.ToLower(body.Email))
	if email == "" {
		writeLifecycleError(w, &lifecycle.ValidationError{Fields: map[string]string{"email": "email is required"}})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := u.DB.FindOne(ctx, bson.M{"user.email": email})
	if err == nil && user != nil {
		token, signErr := signResetToken(user.ID)
		if signErr != nil {
			zap.S().Errorw("failed to sign reset token", "error", signErr)
		} else {
			link := strings.TrimRight(u.BaseURL, "/") + "/reset-password?token=" + token
			plain := fmt.Sprintf("Reset your password using this link: %s (valid for 1 hour)", link)
			u.Notifier.NotifyAsync(email, "Password reset request", plain, templates.RenderPasswordReset(link))
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "if that email is registered, a reset link has been sent"})
}

// ResetPasswordHandler sets a new password with a valid reset token
func (u User) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if len(body.Password) < 8 {
		writeLifecycleError(w, &lifecycle.ValidationError{Fields: map[string]string{"password": "password must be at least 8 characters"}})
		return
	}

	userID, err := parseResetToken(body.Token)
	if err != nil {
		config.ErrorStatus("invalid or expired token", http.StatusBadRequest, w, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := u.DB.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{
		"user.password":  string(hash),
		"user.updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to update password", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		writeLifecycleError(w, lifecycle.ErrNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "password updated"})
}

func signResetToken(userID string) (string, error) {
	secret := []byte(os.Getenv("JWT_SECRET"))
	if len(secret) == 0 {
		return "", errors.New("JWT_SECRET is not set")
	}
	claims := jwt.MapClaims{
		"sub": userID,
		"typ": "reset",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(1 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseResetToken(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !parsed.Valid {
		return "", errors.New("invalid or expired token")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims["typ"] != "reset" {
		return "", errors.New("not a reset token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("missing subject")
	}
	return sub, nil
}
