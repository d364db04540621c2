package repository

import (
	"alcyxob/neuralfit/internal/domain" // Import our defined domain models
	"context"                           // Standard for request-scoped deadlines, cancellation signals, etc.

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound      = RepositoryError("not found")
	ErrAlreadyExists = RepositoryError("already exists")
	ErrUpdateFailed  = RepositoryError("update failed")
	ErrInvalidID     = RepositoryError("invalid id")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with account data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// UpdateFunc receives the full stored document, as stored (no migration).
type UpdateFunc func(doc bson.M)

// DocumentStore is the per-user tracker document store.
//
// Subscribe delivers the current document once on attach (an empty document
// when the user has none yet) and again after every change, until cancel is
// called or ctx ends. WriteMerge sets the given top-level or dotted-path
// fields and leaves every other field untouched. Writes never wait for the
// change to be delivered back to subscribers.
type DocumentStore interface {
	Subscribe(ctx context.Context, userID string, onUpdate UpdateFunc) (cancel func(), err error)
	WriteMerge(ctx context.Context, userID string, fields bson.M) error
}

// PlanArchiveRepository stores metadata about replaced plans. The plan JSON
// itself lives in object storage.
type PlanArchiveRepository interface {
	Create(ctx context.Context, archive *domain.PlanArchive) (primitive.ObjectID, error)
	GetByPlanID(ctx context.Context, userID primitive.ObjectID, planID string) (*domain.PlanArchive, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanArchive, error)
}
