package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/resolvehq/tribunal-api/api"
	"github.com/resolvehq/tribunal-api/config"
	"github.com/resolvehq/tribunal-api/databases"
	"github.com/resolvehq/tribunal-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	caseDB := databases.NewCaseDatabase(a.dbHelper)
	userDB := databases.NewUserDatabase(a.dbHelper)

	notifier := NewNotifier()
	hub := NewCaseHub()
	limiter := api.NewRateLimiter(a.Config.CaseRateLimit, a.Config.CaseRateWindow)

	c := Case{
		DB:             caseDB,
		UDB:            userDB,
		Limiter:        limiter,
		Notifier:       notifier,
		Hub:            hub,
		ResponseWindow: a.Config.ResponseWindow,
	}
	u := User{DB: userDB, BaseURL: a.Config.BaseURL, Notifier: notifier}
	ev := Evidence{}
	sv := Suggestion{DB: caseDB}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	// the websocket feed lives outside this subrouter so long-lived
	// connections are not cut by the request timeout
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.Handle("/auth/token", http.HandlerFunc(m.CreateToken)).Methods("POST")
	apiCreate.Handle("/auth/logout", m.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")
	apiCreate.Handle("/auth/forgot-password", http.HandlerFunc(u.ForgotPasswordHandler)).Methods("POST")
	apiCreate.Handle("/auth/reset-password", http.HandlerFunc(u.ResetPasswordHandler)).Methods("POST")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/{user_id}", m.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id}", m.Middleware(http.HandlerFunc(u.UpdateUserByIDHandler))).Methods("PUT")
	apiCreate.Handle("/user/{user_id}/role", m.Middleware(http.HandlerFunc(u.UpdateUserRoleHandler))).Methods("PUT")

	apiCreate.Handle("/case", m.Middleware(http.HandlerFunc(c.CreateCaseHandler))).Methods("POST")
	apiCreate.Handle("/cases", m.Middleware(http.HandlerFunc(c.CasesHandler))).Methods("GET")
	apiCreate.Handle("/cases/pending-verification", m.Middleware(http.HandlerFunc(c.PendingVerificationsHandler))).Methods("GET")
	apiCreate.Handle("/case/{case_id}", m.Middleware(http.HandlerFunc(c.CaseByIDHandler))).Methods("GET")
	apiCreate.Handle("/case/{case_id}", m.Middleware(http.HandlerFunc(c.DeleteCaseHandler))).Methods("DELETE")
	apiCreate.Handle("/case/{case_id}/verify", m.Middleware(http.HandlerFunc(c.VerifyCaseHandler))).Methods("PUT")
	apiCreate.Handle("/case/{case_id}/response", m.Middleware(http.HandlerFunc(c.SubmitTargetResponseHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/status", m.Middleware(http.HandlerFunc(c.UpdateCaseStatusHandler))).Methods("PUT")
	apiCreate.Handle("/case/{case_id}/verdict", m.Middleware(http.HandlerFunc(c.UpdateCaseVerdictHandler))).Methods("PUT")
	apiCreate.Handle("/case/{case_id}/review", m.Middleware(http.HandlerFunc(c.MoveToReviewHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/publish", m.Middleware(http.HandlerFunc(c.PublishCaseHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/reject", m.Middleware(http.HandlerFunc(c.RejectCaseHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/close", m.Middleware(http.HandlerFunc(c.CloseCaseHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/vote", m.Middleware(http.HandlerFunc(c.CastVoteHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/votes", m.Middleware(http.HandlerFunc(c.GetVotesHandler))).Methods("GET")
	apiCreate.Handle("/case/{case_id}/comment", m.Middleware(http.HandlerFunc(c.AddCommentHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/suggest-verdict", m.Middleware(http.HandlerFunc(sv.SuggestVerdictHandler))).Methods("GET")

	apiCreate.Handle("/evidence", m.Middleware(http.HandlerFunc(ev.UploadEvidenceHandler))).Methods("POST")
	apiCreate.Handle("/generate-signature", m.Middleware(http.HandlerFunc(ev.GenerateSignature))).Methods("POST")

	r.Handle("/ws/cases", http.HandlerFunc(hub.HandleCasesWebSocket))

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("tribunal-api has connected to the database")

	// initialize api router
	a.initializeRoutes()
	return nil

}

// DB exposes the database helper for wiring background jobs in main
func (a *App) DB() databases.DatabaseHelper {
	return a.dbHelper
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
