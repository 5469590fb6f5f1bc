package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harperclay/expensify/internal/common"
	"github.com/harperclay/expensify/internal/model"
)

// GetAllowListEntry returns the allow-list entry for the given email, or
// (nil, nil) when the email is not allow-listed. The lookup is an exact,
// case-sensitive match on the stored key.
func (s *MongoStorage) GetAllowListEntry(ctx context.Context, email string) (*model.AllowListEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(email, "email"); err != nil {
		return nil, err
	}

	var entry model.AllowListEntry
	err := s.db.Collection(allowListCollection).
		FindOne(ctx, bson.M{"_id": email}).
		Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query allow-list: %v", common.ErrStoreUnavailable, err)
	}

	return &entry, nil
}

// PutAllowListEntry inserts or replaces an allow-list entry. Only the
// administrative CLI calls this; the sign-in flow never writes here.
func (s *MongoStorage) PutAllowListEntry(ctx context.Context, entry model.AllowListEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(entry.Email, "email"); err != nil {
		return err
	}

	_, err := s.db.Collection(allowListCollection).ReplaceOne(ctx,
		bson.M{"_id": entry.Email},
		entry,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: write allow-list entry: %v", common.ErrStoreUnavailable, err)
	}

	slog.Info("allow-list entry written", "email", entry.Email, "role", entry.Role)
	return nil
}

// DeleteAllowListEntry removes an allow-list entry.
func (s *MongoStorage) DeleteAllowListEntry(ctx context.Context, email string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(email, "email"); err != nil {
		return err
	}

	res, err := s.db.Collection(allowListCollection).DeleteOne(ctx, bson.M{"_id": email})
	if err != nil {
		return fmt.Errorf("%w: delete allow-list entry: %v", common.ErrStoreUnavailable, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: allow-list entry %q", common.ErrNotFound, email)
	}

	return nil
}

// ListAllowListEntries returns all allow-list entries ordered by email.
func (s *MongoStorage) ListAllowListEntries(ctx context.Context) ([]model.AllowListEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	cursor, err := s.db.Collection(allowListCollection).Find(ctx,
		bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: query allow-list: %v", common.ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	var entries []model.AllowListEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode allow-list entries: %v", common.ErrStoreUnavailable, err)
	}

	return entries, nil
}
