package storage

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harperclay/expensify/internal/common"
	"github.com/harperclay/expensify/internal/model"
)

// ListCustomCategories returns the owner's custom categories ordered by
// name. Built-in categories are not stored and never appear here.
func (s *MongoStorage) ListCustomCategories(ctx context.Context, ownerID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(ownerID, "ownerID"); err != nil {
		return nil, err
	}

	cursor, err := s.db.Collection(categoriesCollection).Find(ctx,
		bson.M{"ownerID": ownerID},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: query categories: %v", common.ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	var categories []model.Category
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("%w: decode categories: %v", common.ErrStoreUnavailable, err)
	}

	slog.Debug("retrieved custom categories", "owner", ownerID, "count", len(categories))
	return categories, nil
}

// CreateCustomCategory stores a custom category with a server-stamped
// creation time.
func (s *MongoStorage) CreateCustomCategory(ctx context.Context, category model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(category.ID, "category.ID"); err != nil {
		return err
	}
	if err := validateString(category.OwnerID, "category.OwnerID"); err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"name":     category.Name,
			"icon":     category.IconRef,
			"isCustom": true,
			"ownerID":  category.OwnerID,
		},
		"$currentDate": bson.M{"createdAt": true},
	}
	_, err := s.db.Collection(categoriesCollection).UpdateByID(ctx, category.ID, update,
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: create category: %v", common.ErrStoreUnavailable, err)
	}

	return nil
}

// DeleteCustomCategory removes one custom category. The filter includes the
// owner id so one user can never delete another's category by guessing ids.
func (s *MongoStorage) DeleteCustomCategory(ctx context.Context, ownerID, categoryID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(ownerID, "ownerID"); err != nil {
		return err
	}
	if err := validateString(categoryID, "categoryID"); err != nil {
		return err
	}

	res, err := s.db.Collection(categoriesCollection).DeleteOne(ctx,
		bson.M{"_id": categoryID, "ownerID": ownerID})
	if err != nil {
		return fmt.Errorf("%w: delete category: %v", common.ErrStoreUnavailable, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: category %q", common.ErrNotFound, categoryID)
	}

	return nil
}
