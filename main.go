package main

import (
	"fmt"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/resolvehq/tribunal-api/api/handlers"
	"github.com/resolvehq/tribunal-api/api/scheduler"
	"github.com/resolvehq/tribunal-api/config"
	"github.com/resolvehq/tribunal-api/databases"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil {
		log.Fatal(err)
	}

	// response window expiry runs in-process alongside the api
	s := scheduler.NewScheduler(databases.NewCaseDatabase(a.DB()))
	s.Start()
	defer s.Stop()

	zap.S().Infow("tribunal-api is up and running",
		"port", a.Config.Port,
		"url", a.Config.BaseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", a.Config.Port), a.Router))
}
