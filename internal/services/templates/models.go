package templates

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Template is a reusable prompt. Premium templates need the premiumTemplates feature.
type Template struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id" example:"683cdb8aa96ad71e8e075bd3"`
	Name        string        `bson:"name" json:"name" example:"Product launch"`
	Description string        `bson:"description" json:"description" example:"Announce a new product"`
	Category    string        `bson:"category" json:"category" example:"marketing"`
	Prompt      string        `bson:"prompt" json:"prompt,omitempty"`
	IsPremium   bool          `bson:"is_premium" json:"isPremium"`
	UsageCount  int64         `bson:"usage_count" json:"usageCount" example:"42"`
	IsActive    bool          `bson:"is_active" json:"isActive"`
	CreatedBy   bson.ObjectID `bson:"created_by" json:"createdBy"`
	CreatedAt   time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updatedAt"`
}

// OwnerID implements resource.Owned.
func (t *Template) OwnerID() bson.ObjectID { return t.CreatedBy }
