package core

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Summary holds the headline totals for the dashboard cards.
	Summary struct {
		TotalIncome   decimal.Decimal `json:"totalIncome"`
		TotalExpenses decimal.Decimal `json:"totalExpenses"`
		Balance       decimal.Decimal `json:"balance"`
	}

	// CategoryTotal is an amount aggregated by category name.
	CategoryTotal struct {
		Category string          `json:"category"`
		Total    decimal.Decimal `json:"total"`
	}

	// MonthBucket is a fixed calendar-month aggregation slot for trend charts.
	MonthBucket struct {
		Label string          `json:"label"`
		Year  int             `json:"year"`
		Month time.Month      `json:"month"`
		Total decimal.Decimal `json:"total"`
	}
)

// Short month names in the dashboard's locale.
var shortMonths = []string{
	"gen", "feb", "mar", "apr", "mag", "giu",
	"lug", "ago", "set", "ott", "nov", "dic",
}

// Summarize computes income and expense totals and their balance.
// An empty list yields all zeros.
func Summarize(txns []Transaction) Summary {
	s := Summary{
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	for _, t := range txns {
		switch t.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case Expense:
			s.TotalExpenses = s.TotalExpenses.Add(t.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	return s
}

// CategoryBreakdown groups transactions of the given type by category and
// sums their amounts. The result is sorted descending by total; ties keep
// first-seen order.
func CategoryBreakdown(txns []Transaction, typ TransactionType) []CategoryTotal {
	index := make(map[string]int)
	var out []CategoryTotal
	for _, t := range txns {
		if t.Type != typ {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			index[t.Category] = len(out)
			out = append(out, CategoryTotal{Category: t.Category, Total: decimal.Zero})
			i = len(out) - 1
		}
		out[i].Total = out[i].Total.Add(t.Amount)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total.GreaterThan(out[j].Total)
	})
	return out
}

// TopCategories returns at most n entries of the category breakdown,
// highest totals first. Used for the income top-5 ranking.
func TopCategories(txns []Transaction, typ TransactionType, n int) []CategoryTotal {
	out := CategoryBreakdown(txns, typ)
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// MonthlyTrend buckets expense amounts into monthCount consecutive calendar
// months ending at the month containing ref, oldest first. Transactions
// outside the window are silently dropped; empty buckets stay at zero, so
// the result always has exactly monthCount entries.
func MonthlyTrend(txns []Transaction, ref time.Time, monthCount int) []MonthBucket {
	if monthCount <= 0 {
		return nil
	}
	buckets := make([]MonthBucket, monthCount)
	index := make(map[[2]int]int, monthCount)
	for i := 0; i < monthCount; i++ {
		// Normalizing to the first of the month keeps AddDate from
		// overflowing on short months.
		d := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, i-monthCount+1, 0)
		buckets[i] = MonthBucket{
			Label: shortMonths[d.Month()-1],
			Year:  d.Year(),
			Month: d.Month(),
			Total: decimal.Zero,
		}
		index[[2]int{d.Year(), int(d.Month())}] = i
	}
	for _, t := range txns {
		if t.Type != Expense {
			continue
		}
		if i, ok := index[[2]int{t.Date.Year(), int(t.Date.Month())}]; ok {
			buckets[i].Total = buckets[i].Total.Add(t.Amount)
		}
	}
	return buckets
}

// Filter returns the transactions matching both the search term and the type
// filter. The term matches case-insensitively against description or
// category; TypeFilterAll passes every type. The two predicates are
// independent, so the result is their intersection.
func Filter(txns []Transaction, searchTerm, typeFilter string) []Transaction {
	term := strings.ToLower(strings.TrimSpace(searchTerm))
	var out []Transaction
	for _, t := range txns {
		if typeFilter != TypeFilterAll && string(t.Type) != typeFilter {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Description), term) &&
			!strings.Contains(strings.ToLower(t.Category), term) {
			continue
		}
		out = append(out, t)
	}
	return out
}
