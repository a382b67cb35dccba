package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/todoapi/internal/model"
)

// DefaultMongoTimeout bounds a single round trip when MongoConfig.Timeout is unset.
const DefaultMongoTimeout = 5 * time.Second

// MongoConfig holds the connection settings for MongoStore.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// itemDocument is the persisted layout: {_id, title, completed}.
type itemDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Title     string             `bson:"title"`
	Completed bool               `bson:"completed"`
}

func (d itemDocument) toItem() *model.Item {
	return &model.Item{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Completed: d.Completed,
	}
}

// MongoStore implements Store on top of a MongoDB collection.
// Failures of the driver are wrapped with ErrStorageFailure and never retried here.
type MongoStore struct {
	coll    *mongo.Collection
	timeout time.Duration
	logger  *zap.Logger
}

// NewMongoStore connects to MongoDB and verifies the deployment is reachable.
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultMongoTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w: %w", ErrStorageFailure, err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w: %w", ErrStorageFailure, err)
	}

	logger.Info("connected to mongodb",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection),
	)

	return newMongoStore(client.Database(cfg.Database).Collection(cfg.Collection), timeout, logger), nil
}

func newMongoStore(coll *mongo.Collection, timeout time.Duration, logger *zap.Logger) *MongoStore {
	return &MongoStore{
		coll:    coll,
		timeout: timeout,
		logger:  logger,
	}
}

// ValidateID accepts 24-character hex ObjectIDs.
func (s *MongoStore) ValidateID(id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return ErrInvalidID
	}
	return nil
}

// List returns all documents ordered by _id, which follows insertion order.
func (s *MongoStore) List(ctx context.Context) ([]model.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list items: %w: %w", ErrStorageFailure, err)
	}

	var docs []itemDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list items: %w: %w", ErrStorageFailure, err)
	}

	items := make([]model.Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, *doc.toItem())
	}

	return items, nil
}

// Get retrieves an item by its ID.
func (s *MongoStore) Get(ctx context.Context, id string) (*model.Item, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc itemDocument
	if err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get item: %w: %w", ErrStorageFailure, err)
	}

	return doc.toItem(), nil
}

// Insert stores item under a new ObjectID.
func (s *MongoStore) Insert(ctx context.Context, item *model.Item) (*model.Item, error) {
	if item == nil {
		return nil, fmt.Errorf("insert item: %w", ErrNilItem)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := itemDocument{
		ID:        primitive.NewObjectID(),
		Title:     item.Title,
		Completed: item.Completed,
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert item: %w: %w", ErrStorageFailure, err)
	}

	return doc.toItem(), nil
}

// Replace sets title and completed in a single findAndModify and returns the
// document as committed.
func (s *MongoStore) Replace(ctx context.Context, id string, item *model.Item) (*model.Item, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	if item == nil {
		return nil, fmt.Errorf("replace item: %w", ErrNilItem)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: item.Title},
		{Key: "completed", Value: item.Completed},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc itemDocument
	err = s.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("replace item: %w: %w", ErrStorageFailure, err)
	}

	return doc.toItem(), nil
}

// Remove deletes an item by its ID.
func (s *MongoStore) Remove(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("remove item: %w: %w", ErrStorageFailure, err)
	}

	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks that the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.coll.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongodb: %w: %w", ErrStorageFailure, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.coll.Database().Client().Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	s.logger.Info("disconnected from mongodb")
	return nil
}
