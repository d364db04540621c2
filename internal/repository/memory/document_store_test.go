package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"alcyxob/neuralfit/internal/domain"
	"alcyxob/neuralfit/internal/repository"
	"alcyxob/neuralfit/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recorder struct {
	mu   sync.Mutex
	docs []bson.M
}

func (r *recorder) update(doc bson.M) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
}

func (r *recorder) last() bson.M {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[len(r.docs)-1]
}

func TestSubscribeDeliversInitialAndChanges(t *testing.T) {
	store := memory.NewDocumentStore()
	ctx := context.Background()
	rec := &recorder{}

	cancel, err := store.Subscribe(ctx, "u1", rec.update)
	require.NoError(t, err)
	require.Len(t, rec.docs, 1)
	assert.Empty(t, rec.docs[0])

	require.NoError(t, store.WriteMerge(ctx, "u1", bson.M{"profile": domain.DefaultProfile("Ann")}))
	require.Len(t, rec.docs, 2)
	profile, ok := rec.last()["profile"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, "Ann", profile["name"])

	cancel()
	require.NoError(t, store.WriteMerge(ctx, "u1", bson.M{"profile.name": "Bo"}))
	assert.Len(t, rec.docs, 2)
}

func TestWriteMergeLeavesOtherFields(t *testing.T) {
	store := memory.NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.Put("u1", bson.M{
		"profile":  bson.M{"name": "Ann", "neuralXP": 10},
		"dietPlan": bson.A{bson.M{"id": "m1"}},
	}))

	require.NoError(t, store.WriteMerge(ctx, "u1", bson.M{"profile.neuralXP": 20, "aiMeals": bson.A{}}))

	doc := store.Get("u1")
	profile := doc["profile"].(bson.M)
	assert.Equal(t, "Ann", profile["name"])
	assert.EqualValues(t, 20, profile["neuralXP"])
	assert.Contains(t, doc, "dietPlan")
	assert.Contains(t, doc, "aiMeals")
	require.Len(t, store.Writes(), 1)
}

func TestInjectedFailures(t *testing.T) {
	store := memory.NewDocumentStore()
	boom := errors.New("boom")
	store.FailNext(boom)

	err := store.WriteMerge(context.Background(), "u1", bson.M{"a": 1})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, store.Get("u1"))

	require.NoError(t, store.WriteMerge(context.Background(), "u1", bson.M{"a": 1}))
	assert.NotNil(t, store.Get("u1"))
}

func TestSnapshotsAreCopies(t *testing.T) {
	store := memory.NewDocumentStore()
	require.NoError(t, store.Put("u1", bson.M{"profile": bson.M{"name": "Ann"}}))

	doc := store.Get("u1")
	doc["profile"].(bson.M)["name"] = "Changed"
	assert.Equal(t, "Ann", store.Get("u1")["profile"].(bson.M)["name"])
}

func TestUserRepository(t *testing.T) {
	repo := memory.NewUserRepository()
	ctx := context.Background()

	id, err := repo.Create(ctx, &domain.User{Email: "Ann@Example.com", PasswordHash: "x"})
	require.NoError(t, err)
	assert.NotEqual(t, primitive.NilObjectID, id)

	_, err = repo.Create(ctx, &domain.User{Email: "ann@example.com", PasswordHash: "y"})
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)

	u, err := repo.GetByEmail(ctx, "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	_, err = repo.GetByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
