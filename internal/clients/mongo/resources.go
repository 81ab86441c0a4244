package mongo

import (
	"context"

	"infinitiflow/internal/services/content"
	"infinitiflow/internal/services/templates"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// NewContentStore opens the content collection.
func NewContentStore(ctx context.Context, db *mongo.Database) (*Store[content.Content], error) {
	return NewStore[content.Content](ctx, db, "content", []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "_id", Value: -1}}},
	})
}

// NewTemplatesStore opens the templates collection.
func NewTemplatesStore(ctx context.Context, db *mongo.Database) (*Store[templates.Template], error) {
	return NewStore[templates.Template](ctx, db, "templates", []mongo.IndexModel{
		{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "category", Value: 1}}},
	})
}
