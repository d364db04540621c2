package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"alcyxob/neuralfit/internal/domain"
	"alcyxob/neuralfit/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRepository is an in-memory repository.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[primitive.ObjectID]domain.User)}
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(user.Email)
	for _, u := range r.users {
		if u.Email == email {
			return primitive.NilObjectID, repository.ErrAlreadyExists
		}
	}
	user.ID = primitive.NewObjectID()
	user.Email = email
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = *user
	return user.ID, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// PlanArchiveRepository is an in-memory repository.PlanArchiveRepository.
type PlanArchiveRepository struct {
	mu       sync.RWMutex
	archives []domain.PlanArchive
}

func NewPlanArchiveRepository() *PlanArchiveRepository {
	return &PlanArchiveRepository{}
}

var _ repository.PlanArchiveRepository = (*PlanArchiveRepository)(nil)

func (r *PlanArchiveRepository) Create(_ context.Context, archive *domain.PlanArchive) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.archives {
		if a.UserID == archive.UserID && a.PlanID == archive.PlanID {
			return primitive.NilObjectID, repository.ErrAlreadyExists
		}
	}
	archive.ID = primitive.NewObjectID()
	archive.ArchivedAt = time.Now().UTC()
	r.archives = append(r.archives, *archive)
	return archive.ID, nil
}

func (r *PlanArchiveRepository) GetByPlanID(_ context.Context, userID primitive.ObjectID, planID string) (*domain.PlanArchive, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.archives {
		if a.UserID == userID && a.PlanID == planID {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *PlanArchiveRepository) ListByUser(_ context.Context, userID primitive.ObjectID) ([]domain.PlanArchive, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.PlanArchive{}
	for _, a := range r.archives {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ArchivedAt.After(out[j].ArchivedAt) })
	return out, nil
}
