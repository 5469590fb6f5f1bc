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

// CreateExpense stores a new expense, stamping CreatedAt and UpdatedAt with
// the server clock.
func (s *MongoStorage) CreateExpense(ctx context.Context, expense model.Expense) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(expense.ID, "expense.ID"); err != nil {
		return err
	}
	if err := validateString(expense.OwnerID, "expense.OwnerID"); err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"ownerID":        expense.OwnerID,
			"amount":         expense.Amount,
			"currency":       expense.Currency,
			"occurredOn":     expense.OccurredOn,
			"vendor":         expense.Vendor,
			"categoryID":     expense.CategoryID,
			"companyAccount": expense.CompanyAccount,
			"type":           expense.Type,
			"images":         expense.Images,
		},
		"$currentDate": bson.M{"createdAt": true, "updatedAt": true},
	}
	_, err := s.db.Collection(expensesCollection).UpdateByID(ctx, expense.ID, update,
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: create expense: %v", common.ErrStoreUnavailable, err)
	}

	return nil
}

// ListRecentExpenses returns the owner's expenses ordered by occurrence
// date descending, capped at limit. The owner filter is mandatory: the
// expenses collection is flat and the store itself enforces no cross-user
// visibility boundary.
func (s *MongoStorage) ListRecentExpenses(ctx context.Context, ownerID string, limit int) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(ownerID, "ownerID"); err != nil {
		return nil, err
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	cursor, err := s.db.Collection(expensesCollection).Find(ctx,
		bson.M{"ownerID": ownerID},
		options.Find().
			SetSort(bson.D{{Key: "occurredOn", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("%w: query expenses: %v", common.ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	var expenses []model.Expense
	if err := cursor.All(ctx, &expenses); err != nil {
		return nil, fmt.Errorf("%w: decode expenses: %v", common.ErrStoreUnavailable, err)
	}

	slog.Debug("retrieved recent expenses", "owner", ownerID, "count", len(expenses))
	return expenses, nil
}
