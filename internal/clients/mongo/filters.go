package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ExistsFalse is a reusable shortcut for {$exists:false}.
var ExistsFalse = bson.M{"$exists": false}

// olderThan matches documents whose field is missing or earlier than t.
func olderThan(field string, t time.Time) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{field: ExistsFalse},
		bson.M{field: bson.M{"$lt": t}},
	}}
}
