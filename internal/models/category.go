package models

// CategoryType classifies a category as money in or money out.
type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

func (t CategoryType) Valid() bool {
	return t == CategoryIncome || t == CategoryExpense
}

// Category is a read-only input to the import pipeline. Its type is the
// authority on the sign of any ledger entry filed under it.
type Category struct {
	ID        int64        `json:"id" db:"id"`
	AccountID int64        `json:"accountId" db:"account_id"`
	Name      string       `json:"name" db:"name"`
	Type      CategoryType `json:"type" db:"category_type"`
}

// IsExpense reports whether entries under this category are stored positive.
func (c Category) IsExpense() bool {
	return c.Type == CategoryExpense
}
