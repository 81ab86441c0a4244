package mongo

import (
	"context"
	"errors"
	"fmt"

	"infinitiflow/internal/services/resource"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Store is a resource.Store backed by one collection.
type Store[T any] struct {
	collection *mongo.Collection
}

// NewStore opens collection name and creates indexes.
func NewStore[T any](ctx context.Context, db *mongo.Database, name string, indexes []mongo.IndexModel) (*Store[T], error) {
	collection := db.Collection(name)
	if err := ensureIndexes(ctx, collection, indexes); err != nil {
		return nil, err
	}
	return &Store[T]{collection: collection}, nil
}

func translateResourceNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return resource.ErrNotFound
	}
	return err
}

func (s *Store[T]) Insert(ctx context.Context, doc *T) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", s.collection.Name(), err)
	}
	return nil
}

func (s *Store[T]) Get(ctx context.Context, id bson.ObjectID) (*T, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var doc T
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, translateResourceNotFound(err)
	}
	return &doc, nil
}

// List returns documents matching filter, newest first.
func (s *Store[T]) List(ctx context.Context, filter bson.M, page resource.Page) ([]*T, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetSkip(page.Skip).
		SetLimit(page.Limit)

	cur, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.collection.Name(), err)
	}

	docs := make([]*T, 0, page.Limit)
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.collection.Name(), err)
	}
	return docs, nil
}

func (s *Store[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()
	return s.collection.CountDocuments(ctx, filter)
}

// Update applies set and returns the updated document.
func (s *Store[T]) Update(ctx context.Context, id bson.ObjectID, set bson.M) (*T, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc T
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		return nil, translateResourceNotFound(err)
	}
	return &doc, nil
}

func (s *Store[T]) Delete(ctx context.Context, id bson.ObjectID) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", s.collection.Name(), err)
	}
	if res.DeletedCount == 0 {
		return resource.ErrNotFound
	}
	return nil
}

func (s *Store[T]) Increment(ctx context.Context, id bson.ObjectID, field string, delta int64) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return fmt.Errorf("increment %s.%s: %w", s.collection.Name(), field, err)
	}
	if res.MatchedCount == 0 {
		return resource.ErrNotFound
	}
	return nil
}
