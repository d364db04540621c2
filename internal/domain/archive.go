package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanArchive stores metadata about a training plan that was replaced by a
// newer one. The plan JSON itself resides in S3.
type PlanArchive struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	PlanID      string             `bson:"planId" json:"planId"`           // Plan.PlanID of the archived plan
	Goal        string             `bson:"goal" json:"goal"`               // Copied for listings
	Duration    int                `bson:"duration" json:"duration"`       // weeks
	S3ObjectKey string             `bson:"s3ObjectKey" json:"-"`           // internal use
	ContentType string             `bson:"contentType" json:"contentType"` // always application/json today
	Size        int64              `bson:"size" json:"size"`               // bytes
	ArchivedAt  time.Time          `bson:"archivedAt" json:"archivedAt"`
	DownloadURL string             `bson:"-" json:"downloadUrl,omitempty"` // presigned, not stored
}
