package service

import (
	"context"
	"strings"
	"time"

	"fintracker/internal/models"
	"fintracker/internal/valuation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type AccountInput struct {
	Name           string           `json:"account_name"`
	BankName       string           `json:"bank_name"`
	Currency       string           `json:"currency"`
	AccountType    string           `json:"account_type"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

type TransactionInput struct {
	TransactionDate string           `json:"transaction_date"`
	Description     string           `json:"description"`
	Amount          *decimal.Decimal `json:"amount"`
	TransactionType string           `json:"transaction_type"`
	Status          string           `json:"status"`
	Notes           string           `json:"notes"`
}

// Consistency compares an account's stored balance with its opening
// balance plus every posted amount.
type Consistency struct {
	AccountID        string          `json:"account_id"`
	InitialBalance   decimal.Decimal `json:"initial_balance"`
	TransactionTotal decimal.Decimal `json:"transaction_total"`
	TransactionCount int             `json:"transaction_count"`
	Expected         decimal.Decimal `json:"expected_balance"`
	Actual           decimal.Decimal `json:"actual_balance"`
	Difference       decimal.Decimal `json:"difference"`
	Consistent       bool            `json:"consistent"`
}

type AccountService struct {
	store AccountStore
	log   *logrus.Logger
}

func NewAccountService(store AccountStore, log *logrus.Logger) *AccountService {
	return &AccountService{store: store, log: log}
}

// fiatCurrency accepts the currencies a bank account can be held in.
func fiatCurrency(s string) (string, bool) {
	c, err := valuation.ParseCurrency(s)
	if err != nil || c == valuation.USDT {
		return "", false
	}
	return string(c), true
}

func (s *AccountService) CreateAccount(ctx context.Context, userID string, in AccountInput) (models.Account, error) {
	verr := &models.ValidationError{}
	a := models.Account{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        strings.TrimSpace(in.Name),
		BankName:    strings.TrimSpace(in.BankName),
		AccountType: strings.TrimSpace(in.AccountType),
	}
	if a.Name == "" {
		verr.Add(-1, "account_name", "is required")
	}
	if a.BankName == "" {
		verr.Add(-1, "bank_name", "is required")
	}
	if a.AccountType == "" {
		a.AccountType = "savings"
	}
	if c, ok := fiatCurrency(in.Currency); ok {
		a.Currency = c
	} else {
		verr.Add(-1, "currency", "must be one of TWD, AUD, USD")
	}
	if in.InitialBalance != nil {
		a.InitialBalance = in.InitialBalance.Round(2)
	}
	if err := verr.OrNil(); err != nil {
		return models.Account{}, err
	}
	return s.store.CreateAccount(ctx, a)
}

// ListAccounts returns the user's accounts, optionally restricted to one
// currency.
func (s *AccountService) ListAccounts(ctx context.Context, userID, currency string) ([]models.Account, error) {
	if strings.TrimSpace(currency) == "" {
		return s.store.FindAccounts(ctx, userID, "")
	}
	c, ok := fiatCurrency(currency)
	if !ok {
		return nil, models.NewValidationError("currency", "must be one of TWD, AUD, USD")
	}
	return s.store.FindAccounts(ctx, userID, c)
}

// PostTransaction records a posting and moves the account balance by its
// signed amount.
func (s *AccountService) PostTransaction(ctx context.Context, userID, accountID string, in TransactionInput) (models.FiatTransaction, models.Account, error) {
	verr := &models.ValidationError{}
	if _, err := uuid.Parse(accountID); err != nil {
		verr.Add(-1, "account_id", "must be a UUID")
	}
	t := models.FiatTransaction{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		Description:     strings.TrimSpace(in.Description),
		TransactionType: models.TransactionType(strings.ToLower(strings.TrimSpace(in.TransactionType))),
		Status:          strings.ToLower(strings.TrimSpace(in.Status)),
		Notes:           in.Notes,
		TransactionDate: time.Now().UTC(),
	}
	if in.Amount == nil {
		verr.Add(-1, "amount", "is required")
	} else {
		t.Amount = in.Amount.Round(2)
	}
	if t.Description == "" {
		verr.Add(-1, "description", "is required")
	}
	if !t.TransactionType.Valid() {
		verr.Add(-1, "transaction_type", "must be one of income, expense, transfer, deposit, withdrawal, loan_payment")
	}
	switch t.Status {
	case "":
		t.Status = "completed"
	case "completed", "pending":
	default:
		verr.Add(-1, "status", "must be completed or pending")
	}
	if strings.TrimSpace(in.TransactionDate) != "" {
		if d, ok := parseDate(in.TransactionDate); ok {
			t.TransactionDate = d
		} else {
			verr.Add(-1, "transaction_date", "must be a date (YYYY-MM-DD or RFC 3339)")
		}
	}
	if err := verr.OrNil(); err != nil {
		return models.FiatTransaction{}, models.Account{}, err
	}
	return s.store.PostTransaction(ctx, userID, t)
}

// CheckConsistency reports whether the stored balance still equals the
// opening balance plus all postings.
func (s *AccountService) CheckConsistency(ctx context.Context, userID, accountID string) (Consistency, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return Consistency{}, models.NewValidationError("account_id", "must be a UUID")
	}
	a, err := s.store.GetAccount(ctx, userID, accountID)
	if err != nil {
		return Consistency{}, err
	}
	total, count, err := s.store.TransactionSum(ctx, accountID)
	if err != nil {
		return Consistency{}, err
	}
	expected := a.InitialBalance.Add(total)
	c := Consistency{
		AccountID:        a.ID,
		InitialBalance:   a.InitialBalance,
		TransactionTotal: total,
		TransactionCount: count,
		Expected:         expected,
		Actual:           a.Balance,
		Difference:       a.Balance.Sub(expected),
		Consistent:       a.Balance.Equal(expected),
	}
	if !c.Consistent {
		s.log.WithFields(logrus.Fields{"user": userID, "account": accountID, "difference": c.Difference}).
			Warn("account balance drifted from postings")
	}
	return c, nil
}
