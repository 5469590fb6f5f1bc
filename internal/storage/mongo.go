// Package storage provides the document-store persistence layer, backed by
// MongoDB, for profiles, the allow-list, custom categories and expenses.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harperclay/expensify/internal/common"
)

// Collection names. The allow-list is keyed by email, profiles by identity
// id; categories and expenses carry an ownerID field that every query must
// filter on.
const (
	allowListCollection  = "allowed_users"
	profilesCollection   = "users"
	categoriesCollection = "categories"
	expensesCollection   = "expenses"
)

const connectTimeout = 10 * time.Second

// MongoStorage implements the service.Storage contract using MongoDB.
type MongoStorage struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStorage connects to MongoDB and verifies the connection.
func NewMongoStorage(ctx context.Context, uri, database string) (*MongoStorage, error) {
	if err := validateString(uri, "uri"); err != nil {
		return nil, err
	}
	if err := validateString(database, "database"); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", common.ErrStoreUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping: %v", common.ErrStoreUnavailable, err)
	}

	return &MongoStorage{
		client: client,
		db:     client.Database(database),
	}, nil
}

// EnsureIndexes creates the indexes the owner-scoped queries rely on.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.Collection(categoriesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ownerID", Value: 1}, {Key: "name", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("%w: create categories index: %v", common.ErrStoreUnavailable, err)
	}

	_, err = s.db.Collection(expensesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ownerID", Value: 1}, {Key: "occurredOn", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("%w: create expenses index: %v", common.ErrStoreUnavailable, err)
	}

	return nil
}

// Ping verifies the store is reachable.
func (s *MongoStorage) Ping(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: ping: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// Close disconnects from the store.
func (s *MongoStorage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
