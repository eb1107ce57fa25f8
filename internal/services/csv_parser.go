package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/backend/internal/models"
)

// Expected bank export columns, in order:
// Date, Counter Party, Reference, Type, Amount, Balance, Spending Category, Notes
const minImportColumns = 8

// importDateLayout is the bank's preferred dd/mm/yyyy format.
const importDateLayout = "02/01/2006"

// fallbackDateLayouts are tried in order when the preferred layout fails.
var fallbackDateLayouts = []string{
	"2/1/2006",
	"2006-01-02",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
	"2-Jan-2006",
	"Jan 2, 2006",
	"2006-01-02 15:04:05",
}

// currencySymbolPattern strips currency symbols and whitespace from a raw
// amount string before decimal parsing.
var currencySymbolPattern = regexp.MustCompile(`[€$£¥₣₹₽₩฿\s]`)

// SkippedRow records why a CSV line was dropped during import. Dropped rows
// never abort the batch; the reasons are surfaced so callers can report them.
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// splitCSVLine tokenizes one CSV line. A double quote toggles quoted mode and
// a comma separates fields only outside quotes. Escaped quotes ("") are not
// handled specially; a quote is always a pure toggle.
func splitCSVLine(line string) []string {
	var fields []string
	var field strings.Builder
	inQuotes := false

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteRune(ch)
		}
	}
	fields = append(fields, field.String())
	return fields
}

// parseImportDate parses a transaction date, preferring dd/mm/yyyy and falling
// back to a list of common layouts.
func parseImportDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(importDateLayout, s); err == nil {
		return t, nil
	}
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}

// parseImportAmount parses a raw amount string. It first tries a
// currency-formatted parse (symbols and thousands separators stripped), then a
// plain decimal parse of the trimmed input.
func parseImportAmount(s string) (decimal.Decimal, error) {
	standardized := standardizeAmount(s)
	if amount, err := decimal.NewFromString(standardized); err == nil {
		return amount, nil
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparsable amount %q", s)
	}
	return amount, nil
}

// standardizeAmount removes currency symbols and thousands separators so
// values like "£1,234.56" parse as "1234.56".
func standardizeAmount(s string) string {
	s = currencySymbolPattern.ReplaceAllString(strings.TrimSpace(s), "")
	// A comma followed by exactly three digits is a thousands separator;
	// a trailing comma group of one or two digits is a decimal separator.
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			parts := strings.Split(s, ",")
			if len(parts[len(parts)-1]) <= 2 {
				s = strings.ReplaceAll(s, ",", ".")
			} else {
				s = strings.ReplaceAll(s, ",", "")
			}
		}
	}
	return strings.ReplaceAll(s, "'", "")
}

// parsePendingRow converts one tokenized CSV row into a staged transaction.
// The raw bank amount uses positive = money in; the canonical convention is
// positive = expense, so the sign is inverted on ingest.
func parsePendingRow(batchID string, lineNo int, fields []string, raw string, accountID, userID int64) (*models.PendingTransaction, error) {
	date, err := parseImportDate(fields[0])
	if err != nil {
		return nil, err
	}

	rawAmount, err := parseImportAmount(fields[4])
	if err != nil {
		return nil, err
	}

	var balance decimal.NullDecimal
	if b, err := parseImportAmount(fields[5]); err == nil {
		balance = decimal.NullDecimal{Decimal: b, Valid: true}
	}

	counterParty := strings.TrimSpace(fields[1])
	description := counterParty
	if description == "" {
		description = strings.TrimSpace(fields[2])
	}

	return &models.PendingTransaction{
		ExternalID:       fmt.Sprintf("%s-%d", batchID, lineNo),
		Amount:           rawAmount.Neg(),
		Description:      description,
		CounterParty:     counterParty,
		Reference:        strings.TrimSpace(fields[2]),
		TransactionType:  strings.TrimSpace(fields[3]),
		Balance:          balance,
		SpendingCategory: strings.TrimSpace(fields[6]),
		Notes:            strings.TrimSpace(fields[7]),
		TransactionDate:  date,
		Status:           models.PendingReview,
		RawLine:          raw,
		BatchID:          batchID,
		AccountID:        accountID,
		UserID:           userID,
	}, nil
}
