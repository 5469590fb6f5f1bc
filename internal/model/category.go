package model

import "time"

// Category is an expense category. Built-in categories are a fixed static
// list shared by every user; custom categories belong to exactly one owner.
type Category struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	IconRef   IconRef   `bson:"icon"`
	IsCustom  bool      `bson:"isCustom"`
	OwnerID   string    `bson:"ownerID,omitempty"`
	CreatedAt time.Time `bson:"createdAt,omitempty"`
}

// BuiltinCategories is the fixed category set every user starts with.
// These are never stored per-user; they are merged with the owner's custom
// categories at read time.
var BuiltinCategories = []Category{
	{ID: "food-dining", Name: "Food & Dining", IconRef: IconUtensils},
	{ID: "transportation", Name: "Transportation", IconRef: IconCar},
	{ID: "housing", Name: "Housing & Utilities", IconRef: IconHome},
	{ID: "shopping", Name: "Shopping", IconRef: IconShoppingCart},
	{ID: "business", Name: "Business Services", IconRef: IconBriefcase},
	{ID: "health", Name: "Health & Wellness", IconRef: IconHeartPulse},
	{ID: "education", Name: "Education", IconRef: IconBookOpen},
	{ID: "gifts", Name: "Gifts & Donations", IconRef: IconGift},
	{ID: "other", Name: "Other", IconRef: IconCircleDollarSign},
}

// IsBuiltinCategoryID reports whether id belongs to the built-in set.
func IsBuiltinCategoryID(id string) bool {
	for _, c := range BuiltinCategories {
		if c.ID == id {
			return true
		}
	}
	return false
}
