package resource

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var ErrNotFound = errors.New("resource not found")

// Page bounds a listing.
type Page struct {
	Limit int64 `query:"limit" validate:"omitempty,min=1,max=100" example:"20"`
	Skip  int64 `query:"skip" validate:"omitempty,min=0" example:"0"`
}

// DefaultLimit is used when a page does not set one.
const DefaultLimit = 20

// Normalize fills in the default limit.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	return p
}

// Store is validated CRUD over one document type. Lookups return ErrNotFound.
type Store[T any] interface {
	Insert(ctx context.Context, doc *T) error
	Get(ctx context.Context, id bson.ObjectID) (*T, error)
	List(ctx context.Context, filter bson.M, page Page) ([]*T, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
	Update(ctx context.Context, id bson.ObjectID, set bson.M) (*T, error)
	Delete(ctx context.Context, id bson.ObjectID) error
	Increment(ctx context.Context, id bson.ObjectID, field string, delta int64) error
}

// Owned is implemented by documents that belong to a user.
type Owned interface {
	OwnerID() bson.ObjectID
}
