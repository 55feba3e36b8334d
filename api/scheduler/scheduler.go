// Package scheduler runs the periodic background jobs for the tribunal:
// expiring response windows on cases whose named party never answered.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/resolvehq/tribunal-api/databases"
	"github.com/resolvehq/tribunal-api/lifecycle"
)

// Scheduler handles periodic background jobs for the case lifecycle
type Scheduler struct {
	cron *cron.Cron
	CDB  databases.CaseDatabase
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cDB databases.CaseDatabase) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		CDB:  cDB,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Expire overdue response windows hourly
	_, err := s.cron.AddFunc("0 * * * *", s.expireResponseWindows)
	if err != nil {
		zap.S().Errorw("failed to register response window job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("case lifecycle scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("case lifecycle scheduler stopped")
}

// expireResponseWindows moves TargetNotified cases whose deadline has passed
// without a response into AwaitingResponse. Each update keeps the current
// status in the filter so a response submitted mid-scan wins the race.
func (s *Scheduler) expireResponseWindows() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := primitive.NewDateTimeFromTime(time.Now())
	filter := bson.M{
		"case.status":                  string(lifecycle.StatusTargetNotified),
		"case.responseDeadline":        bson.M{"$lt": now},
		"case.targetResponse.received": false,
	}

	cases, err := s.CDB.Find(ctx, filter)
	if err != nil {
		zap.S().Errorw("failed to find overdue cases", "error", err)
		return
	}

	expired := 0
	for _, caseDoc := range cases {
		res, err := s.CDB.UpdateOne(ctx,
			bson.M{"_id": caseDoc.ID, "case.status": string(lifecycle.StatusTargetNotified)},
			bson.M{"$set": bson.M{
				"case.status":    string(lifecycle.StatusAwaitingResponse),
				"case.updatedAt": primitive.NewDateTimeFromTime(time.Now()),
			}})
		if err != nil {
			zap.S().Errorw("failed to expire case response window", "caseID", caseDoc.ID.Hex(), "error", err)
			continue
		}
		if res.MatchedCount == 0 {
			// a response arrived between the scan and the update
			continue
		}
		expired++
	}

	if expired > 0 || len(cases) > 0 {
		zap.S().Infow("response window sweep complete", "scanned", len(cases), "expired", expired)
	}
}
