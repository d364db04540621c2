package mongo

import (
	"alcyxob/neuralfit/internal/repository"
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultPollInterval = 5 * time.Second

// DocumentStore implements repository.DocumentStore on the users collection.
// Subscriptions use change streams when the deployment supports them and
// fall back to polling otherwise.
type DocumentStore struct {
	collection    *mongo.Collection
	changeStreams bool
	pollInterval  time.Duration
	log           zerolog.Logger
}

// NewDocumentStore creates the store. changeStreams should come from
// SupportsChangeStreams; pollInterval <= 0 uses the default.
func NewDocumentStore(db *mongo.Database, changeStreams bool, pollInterval time.Duration, logger zerolog.Logger) *DocumentStore {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &DocumentStore{
		collection:    db.Collection(userCollectionName),
		changeStreams: changeStreams,
		pollInterval:  pollInterval,
		log:           logger.With().Str("component", "document_store").Logger(),
	}
}

var _ repository.DocumentStore = (*DocumentStore)(nil)

// WriteMerge $sets the given fields (dotted paths allowed) and bumps updatedAt.
// A missing document is created.
func (s *DocumentStore) WriteMerge(ctx context.Context, userID string, fields bson.M) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return repository.ErrInvalidID
	}
	if len(fields) == 0 {
		return nil
	}

	set := make(bson.M, len(fields)+1)
	for k, v := range fields {
		set[k] = v
	}
	set["updatedAt"] = time.Now().UTC()

	_, err = s.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

// Subscribe delivers the current document and then every change to it.
func (s *DocumentStore) Subscribe(ctx context.Context, userID string, onUpdate repository.UpdateFunc) (func(), error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, repository.ErrInvalidID
	}
	ctx, cancel := context.WithCancel(ctx)

	// Open the stream before the initial read so no change falls in between.
	var stream *mongo.ChangeStream
	if s.changeStreams {
		pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: oid}}}}}
		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		stream, err = s.collection.Watch(ctx, pipeline, opts)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("change stream unavailable, falling back to polling")
			stream = nil
		}
	}

	doc, err := s.load(ctx, oid)
	if err != nil {
		if stream != nil {
			_ = stream.Close(context.Background())
		}
		cancel()
		return nil, err
	}
	onUpdate(doc)

	if stream != nil {
		go s.watch(ctx, stream, oid, doc, onUpdate)
	} else {
		go s.poll(ctx, oid, doc, onUpdate)
	}
	return cancel, nil
}

func (s *DocumentStore) load(ctx context.Context, oid primitive.ObjectID) (bson.M, error) {
	var doc bson.M
	err := s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return bson.M{}, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	FullDocument  bson.M `bson:"fullDocument"`
}

func (s *DocumentStore) watch(ctx context.Context, stream *mongo.ChangeStream, oid primitive.ObjectID, last bson.M, onUpdate repository.UpdateFunc) {
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var ev changeEvent
		if err := stream.Decode(&ev); err != nil {
			s.log.Error().Err(err).Str("user_id", oid.Hex()).Msg("decode change event")
			continue
		}
		switch ev.OperationType {
		case "delete":
			last = bson.M{}
		default:
			if ev.FullDocument == nil {
				continue
			}
			last = ev.FullDocument
		}
		onUpdate(last)
	}

	if ctx.Err() != nil {
		return
	}
	s.log.Warn().Err(stream.Err()).Str("user_id", oid.Hex()).Msg("change stream ended, falling back to polling")
	s.poll(ctx, oid, last, onUpdate)
}

func (s *DocumentStore) poll(ctx context.Context, oid primitive.ObjectID, last bson.M, onUpdate repository.UpdateFunc) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			doc, err := s.load(ctx, oid)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn().Err(err).Str("user_id", oid.Hex()).Msg("poll user document")
				}
				continue
			}
			if reflect.DeepEqual(doc, last) {
				continue
			}
			last = doc
			onUpdate(doc)
		}
	}
}
