package model

import "time"

// ExpenseType distinguishes money going out from money coming in.
type ExpenseType string

const (
	// TypeDebit is an expense.
	TypeDebit ExpenseType = "debit"
	// TypeCredit is income.
	TypeCredit ExpenseType = "credit"
)

// SupportedCurrencies lists the ISO currency codes the application accepts.
var SupportedCurrencies = []string{"USD", "EUR", "MXN", "CAD", "GBP"}

// IsSupportedCurrency reports whether code is an accepted currency.
func IsSupportedCurrency(code string) bool {
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// MaxReceiptImages caps how many receipt images a single expense may carry.
const MaxReceiptImages = 5

// StoredImage is a reference to an uploaded receipt image.
type StoredImage struct {
	ID          string `bson:"id"`
	Name        string `bson:"name"`
	URL         string `bson:"url"`
	StoragePath string `bson:"storagePath"`
}

// Expense is a single recorded expense, exclusively owned by one user.
type Expense struct {
	ID             string        `bson:"_id"`
	OwnerID        string        `bson:"ownerID"`
	Amount         float64       `bson:"amount"`
	Currency       string        `bson:"currency"`
	OccurredOn     time.Time     `bson:"occurredOn"`
	Vendor         string        `bson:"vendor"`
	CategoryID     string        `bson:"categoryID"`
	CompanyAccount bool          `bson:"companyAccount"`
	Type           ExpenseType   `bson:"type"`
	Images         []StoredImage `bson:"images,omitempty"`
	CreatedAt      time.Time     `bson:"createdAt"`
	UpdatedAt      time.Time     `bson:"updatedAt"`
}
