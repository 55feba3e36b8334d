package lifecycle

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/resolvehq/tribunal-api/models"
)

// UserFinder is the slice of the user database the target matcher needs.
// databases.UserDatabase satisfies it.
type UserFinder interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error)
}

// MatchTarget attempts automatic resolution of free-text target info to a
// single user: exact email first, then phone, then the (building, flat) pair.
// A single unambiguous match resolves automatically; zero or multiple matches
// on every field leave the case for manual verification. A manual decision by
// a judge/admin always overrides whatever this returns.
func MatchTarget(ctx context.Context, users UserFinder, info models.TargetInfo) (*models.User, error) {
	filters := []bson.M{}
	if email := strings.TrimSpace(strings.ToLower(info.Email)); email != "" {
		filters = append(filters, bson.M{"user.email": email})
	}
	if phone := strings.TrimSpace(info.Phone); phone != "" {
		filters = append(filters, bson.M{"user.phone": phone})
	}
	if info.Building != "" && info.Flat != "" {
		filters = append(filters, bson.M{
			"user.building": strings.TrimSpace(info.Building),
			"user.flat":     strings.TrimSpace(info.Flat),
		})
	}

	for _, filter := range filters {
		matches, err := users.Find(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(matches) == 1 {
			u := matches[0]
			return &u, nil
		}
		// ambiguous or empty, fall through to the next field
	}
	return nil, nil
}
