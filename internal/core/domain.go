package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   RecurringInterval = "DAILY"
	Weekly  RecurringInterval = "WEEKLY"
	Monthly RecurringInterval = "MONTHLY"
	Yearly  RecurringInterval = "YEARLY"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

type (
	// RecurringInterval is the cadence of a recurring transaction.
	RecurringInterval string

	// TransactionType decides the sign of a transaction's effect on the
	// owning account balance: INCOME adds, EXPENSE subtracts.
	TransactionType string

	User struct {
		ID    string
		Email string
		Name  string
	}

	Account struct {
		ID        string
		UserID    string
		Name      string
		Balance   Money
		IsDefault bool
	}

	// Transaction is a settled ledger entry. Amount is always a positive
	// magnitude; Type carries the sign. Recurring templates additionally
	// carry an interval and the date of their next occurrence.
	Transaction struct {
		ID          string
		UserID      string
		AccountID   string
		Type        TransactionType
		Amount      Money
		Category    Category
		Description string
		Date        time.Time

		IsRecurring       bool
		RecurringInterval RecurringInterval
		NextRecurringDate time.Time
		LastProcessed     time.Time
	}

	// Budget is the monthly expense ceiling for a user. At most one per
	// user; writes are upserts, the engine only reads it.
	Budget struct {
		ID     string
		UserID string
		Amount Money
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidInterval  = errors.New("invalid recurring interval")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrMissingNextDate  = errors.New("recurring transaction has no next occurrence date")
	ErrEmptyDescription = errors.New("empty description")
	ErrMissingAccount   = errors.New("missing account reference")
	ErrMissingUser      = errors.New("missing user reference")
)

// Category is a validated expense/income label. Free-text labels from the
// outer layers are normalized through ParseCategory at the boundary.
type Category string

const (
	CategoryHousing        Category = "housing"
	CategoryTransportation Category = "transportation"
	CategoryGroceries      Category = "groceries"
	CategoryUtilities      Category = "utilities"
	CategoryEntertainment  Category = "entertainment"
	CategoryFood           Category = "food"
	CategoryShopping       Category = "shopping"
	CategoryHealthcare     Category = "healthcare"
	CategoryEducation      Category = "education"
	CategoryPersonal       Category = "personal"
	CategoryTravel         Category = "travel"
	CategoryInsurance      Category = "insurance"
	CategoryGifts          Category = "gifts"
	CategoryBills          Category = "bills"
	CategorySalary         Category = "salary"
	CategoryFreelance      Category = "freelance"
	CategoryInvestments    Category = "investments"
	CategoryBusiness       Category = "business"
	CategoryRental         Category = "rental"
	CategoryOtherExpense   Category = "other-expense"
	CategoryOtherIncome    Category = "other-income"
)

var knownCategories = map[Category]struct{}{
	CategoryHousing: {}, CategoryTransportation: {}, CategoryGroceries: {},
	CategoryUtilities: {}, CategoryEntertainment: {}, CategoryFood: {},
	CategoryShopping: {}, CategoryHealthcare: {}, CategoryEducation: {},
	CategoryPersonal: {}, CategoryTravel: {}, CategoryInsurance: {},
	CategoryGifts: {}, CategoryBills: {}, CategorySalary: {},
	CategoryFreelance: {}, CategoryInvestments: {}, CategoryBusiness: {},
	CategoryRental: {}, CategoryOtherExpense: {}, CategoryOtherIncome: {},
}

// ParseCategory normalizes a raw label into a known Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownCategories[c]; !ok {
		return "", ErrInvalidCategory
	}
	return c, nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

func (i RecurringInterval) Validate() error {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	default:
		return ErrInvalidInterval
	}
}

// SignedCents is the transaction's effect on the owning account balance in
// minor units: positive for income, negative for expense.
func (t Transaction) SignedCents() int64 {
	if t.Type == Expense {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

func (t Transaction) Validate() error {
	if t.UserID == "" {
		return ErrMissingUser
	}
	if t.AccountID == "" {
		return ErrMissingAccount
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if _, ok := knownCategories[t.Category]; !ok {
		return ErrInvalidCategory
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.IsRecurring {
		if err := t.RecurringInterval.Validate(); err != nil {
			return err
		}
		if t.NextRecurringDate.IsZero() {
			return ErrMissingNextDate
		}
	}
	return nil
}

func (b Budget) Validate() error {
	if b.UserID == "" {
		return ErrMissingUser
	}
	return b.Amount.Validate()
}
