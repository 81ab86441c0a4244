package content

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Content is a generated piece of marketing copy.
type Content struct {
	ID         bson.ObjectID  `bson:"_id,omitempty" json:"id" example:"683cdb8aa96ad71e8e075bd1"`
	UserID     bson.ObjectID  `bson:"user" json:"user" example:"683cdb8aa96ad71e8e075bd0"`
	Title      string         `bson:"title" json:"title" example:"Spring launch announcement"`
	Type       string         `bson:"type" json:"type" example:"blog"`
	Prompt     string         `bson:"prompt" json:"prompt" example:"Announce our spring product line"`
	Body       string         `bson:"body" json:"body"`
	WordCount  int            `bson:"word_count" json:"wordCount" example:"420"`
	TemplateID *bson.ObjectID `bson:"template,omitempty" json:"template,omitempty"`
	Status     string         `bson:"status" json:"status" example:"draft"`
	CreatedAt  time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time      `bson:"updated_at" json:"updatedAt"`
}

// OwnerID implements resource.Owned.
func (c *Content) OwnerID() bson.ObjectID { return c.UserID }

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)
