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

// GetProfile returns the profile for the given identity id, or (nil, nil)
// when no profile exists yet.
func (s *MongoStorage) GetProfile(ctx context.Context, id string) (*model.UserProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var profile model.UserProfile
	err := s.db.Collection(profilesCollection).
		FindOne(ctx, bson.M{"_id": id}).
		Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query profile: %v", common.ErrStoreUnavailable, err)
	}

	return &profile, nil
}

// CreateProfile creates a profile record, stamping LastLoginAt with the
// server clock so displayed values are immune to client clock skew.
// CreatedAt is stamped only when the document carries none yet: two
// concurrent first logins racing past the caller's existence check must
// not re-stamp it.
func (s *MongoStorage) CreateProfile(ctx context.Context, profile model.UserProfile) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(profile.ID, "profile.ID"); err != nil {
		return err
	}

	fields := profileFields(profile)
	fields["lastLoginAt"] = "$$NOW"
	fields["createdAt"] = bson.M{"$ifNull": bson.A{"$createdAt", "$$NOW"}}

	_, err := s.db.Collection(profilesCollection).UpdateByID(ctx, profile.ID,
		bson.A{bson.M{"$set": fields}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: create profile: %v", common.ErrStoreUnavailable, err)
	}

	slog.Debug("profile created", "id", profile.ID)
	return nil
}

// MergeProfile merge-updates an existing profile: identity fields and role
// are refreshed, LastLoginAt is server-stamped, and CreatedAt is never
// touched.
func (s *MongoStorage) MergeProfile(ctx context.Context, profile model.UserProfile) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(profile.ID, "profile.ID"); err != nil {
		return err
	}

	update := bson.M{
		"$set":         profileFields(profile),
		"$currentDate": bson.M{"lastLoginAt": true},
	}
	res, err := s.db.Collection(profilesCollection).UpdateByID(ctx, profile.ID, update)
	if err != nil {
		return fmt.Errorf("%w: merge profile: %v", common.ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: profile %q", common.ErrNotFound, profile.ID)
	}

	return nil
}

// profileFields is the merge-updatable subset of a profile document;
// timestamps are excluded and only ever stamped with the server clock.
func profileFields(p model.UserProfile) bson.M {
	return bson.M{
		"email":       p.Email,
		"displayName": p.DisplayName,
		"avatarURL":   p.AvatarURL,
		"role":        p.Role,
	}
}
