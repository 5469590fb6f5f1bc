package expense

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperclay/expensify/internal/model"
	"github.com/harperclay/expensify/internal/storage"
)

func validExpense() model.Expense {
	return model.Expense{
		Amount:     12.50,
		Currency:   "USD",
		OccurredOn: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Vendor:     "Blue Bottle",
		CategoryID: "food-dining",
		Type:       model.TypeDebit,
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.Expense)
		wantErr error
	}{
		{"zero amount", func(e *model.Expense) { e.Amount = 0 }, ErrNonPositiveAmount},
		{"negative amount", func(e *model.Expense) { e.Amount = -4 }, ErrNonPositiveAmount},
		{"unknown currency", func(e *model.Expense) { e.Currency = "JPY" }, ErrUnknownCurrency},
		{"lowercase currency", func(e *model.Expense) { e.Currency = "usd" }, ErrUnknownCurrency},
		{"missing date", func(e *model.Expense) { e.OccurredOn = time.Time{} }, ErrMissingDate},
		{"blank vendor", func(e *model.Expense) { e.Vendor = "   " }, ErrMissingVendor},
		{"vendor too long", func(e *model.Expense) { e.Vendor = strings.Repeat("v", MaxVendorLength+1) }, ErrVendorTooLong},
		{"missing category", func(e *model.Expense) { e.CategoryID = "" }, ErrMissingCategory},
		{"bad type", func(e *model.Expense) { e.Type = "transfer" }, ErrInvalidExpenseType},
		{"too many images", func(e *model.Expense) {
			e.Images = make([]model.StoredImage, model.MaxReceiptImages+1)
		}, ErrTooManyImages},
	}

	store := NewStore(storage.NewMemoryStorage())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validExpense()
			tt.mutate(&e)
			_, err := store.Create(context.Background(), "u1", e)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreate_BoundaryValuesAccepted(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage())
	ctx := context.Background()

	e := validExpense()
	e.Vendor = strings.Repeat("v", MaxVendorLength)
	e.Images = make([]model.StoredImage, model.MaxReceiptImages)
	e.Type = model.TypeCredit

	id, err := store.Create(ctx, "u1", e)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestCreate_StampsOwnerAndTimestamps(t *testing.T) {
	mem := storage.NewMemoryStorage()
	now := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	mem.Now = func() time.Time { return now }
	store := NewStore(mem)
	ctx := context.Background()

	id, err := store.Create(ctx, "u1", validExpense())
	require.NoError(t, err)

	listed, err := store.ListRecent(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	got := listed[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "u1", got.OwnerID)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, now, got.UpdatedAt)
}

func TestListRecent_CapAndOrder(t *testing.T) {
	mem := storage.NewMemoryStorage()
	store := NewStore(mem)
	ctx := context.Background()

	// One expense per day, oldest first, one past the cap.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < RecentLimit+1; i++ {
		e := validExpense()
		e.OccurredOn = base.AddDate(0, 0, i)
		_, err := store.Create(ctx, "u1", e)
		require.NoError(t, err)
	}

	listed, err := store.ListRecent(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, listed, RecentLimit)

	// Newest first; the oldest entry fell off.
	assert.Equal(t, base.AddDate(0, 0, RecentLimit), listed[0].OccurredOn)
	assert.Equal(t, base.AddDate(0, 0, 1), listed[len(listed)-1].OccurredOn)
	for i := 1; i < len(listed); i++ {
		assert.False(t, listed[i].OccurredOn.After(listed[i-1].OccurredOn),
			"expenses must be ordered by occurrence date descending")
	}
}

func TestListRecent_ScopedToOwner(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage())
	ctx := context.Background()

	_, err := store.Create(ctx, "u1", validExpense())
	require.NoError(t, err)

	listed, err := store.ListRecent(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestVendors(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage())
	ctx := context.Background()

	for i, vendor := range []string{"Costco", "costco", "Amazon", "Blue Bottle"} {
		e := validExpense()
		e.Vendor = vendor
		e.OccurredOn = time.Date(2024, 6, 1+i, 0, 0, 0, 0, time.UTC)
		_, err := store.Create(ctx, "u1", e)
		require.NoError(t, err)
	}

	vendors, err := store.Vendors(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, vendors, 3, "vendor names dedupe case-insensitively")
	assert.Equal(t, "Amazon", vendors[0])
	assert.Equal(t, "Blue Bottle", vendors[1])
	assert.Equal(t, "costco", strings.ToLower(vendors[2]))
}

func TestUploadReceiptImage(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage())

	img, err := store.UploadReceiptImage(context.Background(), "u1", "receipt one.jpg")
	require.NoError(t, err)

	assert.NotEmpty(t, img.ID)
	assert.Equal(t, "receipt one.jpg", img.Name)
	assert.Equal(t, "https://placehold.co/400x300.png?text=receipt+one.jpg", img.URL)
	assert.Equal(t, "receipts/u1/"+img.ID+"/receipt one.jpg", img.StoragePath)
}

func TestUploadReceiptImage_DefaultName(t *testing.T) {
	store := NewStore(storage.NewMemoryStorage())

	img, err := store.UploadReceiptImage(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "receipt", img.Name)
}
