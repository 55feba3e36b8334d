package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	mocksdb "github.com/resolvehq/tribunal-api/databases/mocks"
	"github.com/resolvehq/tribunal-api/lifecycle"
	"github.com/resolvehq/tribunal-api/models"
)

func notifiedCase() models.Case {
	return models.Case{
		ID: primitive.NewObjectID(),
		Details: models.CaseDetails{
			Status: string(lifecycle.StatusTargetNotified),
		},
	}
}

func TestExpireResponseWindows(t *testing.T) {
	overdue := notifiedCase()
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("Find", mock.Anything, mock.MatchedBy(func(filter interface{}) bool {
		m, ok := filter.(bson.M)
		return ok &&
			m["case.status"] == string(lifecycle.StatusTargetNotified) &&
			m["case.targetResponse.received"] == false
	})).Return([]models.Case{overdue}, nil)
	cdb.On("UpdateOne", mock.Anything,
		bson.M{"_id": overdue.ID, "case.status": string(lifecycle.StatusTargetNotified)},
		mock.MatchedBy(func(update interface{}) bool {
			m, ok := update.(bson.M)
			if !ok {
				return false
			}
			set, ok := m["$set"].(bson.M)
			return ok && set["case.status"] == string(lifecycle.StatusAwaitingResponse)
		})).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	s := NewScheduler(cdb)
	s.expireResponseWindows()

	cdb.AssertExpectations(t)
}

// A response that lands between the scan and the update wins; the sweep must
// not error or retry.
func TestExpireResponseWindowsLosesRaceCleanly(t *testing.T) {
	overdue := notifiedCase()
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("Find", mock.Anything, mock.Anything).Return([]models.Case{overdue}, nil)
	cdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	s := NewScheduler(cdb)
	s.expireResponseWindows()

	cdb.AssertNumberOfCalls(t, "UpdateOne", 1)
}

func TestExpireResponseWindowsNothingOverdue(t *testing.T) {
	cdb := &mocksdb.CaseDatabase{}
	cdb.On("Find", mock.Anything, mock.Anything).Return([]models.Case{}, nil)

	s := NewScheduler(cdb)
	s.expireResponseWindows()

	cdb.AssertNotCalled(t, "UpdateOne")
	assert.NotNil(t, s.cron)
}
