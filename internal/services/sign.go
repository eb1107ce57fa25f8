package services

import (
	"github.com/shopspring/decimal"

	"github.com/pocketledger/backend/internal/models"
)

// resolveSplitAmount applies the cross-category sign rule when one staged row
// is split across several categories. The category's own type is the authority
// on the stored sign: a split filed under a category of the same type as the
// original row keeps a positive magnitude, a cross-type assignment flips it.
//
// Canonical convention throughout: positive = expense, negative = income.
func resolveSplitAmount(original decimal.Decimal, category models.Category, splitAmount decimal.Decimal) decimal.Decimal {
	isOriginalExpense := original.Sign() > 0
	amount := splitAmount.Abs()
	if isOriginalExpense != category.IsExpense() {
		return amount.Neg()
	}
	return amount
}
