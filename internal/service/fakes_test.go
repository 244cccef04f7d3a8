package service

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"fintracker/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func nd(s string) decimal.NullDecimal { return decimal.NullDecimal{Decimal: d(s), Valid: true} }

// memStore is an in-memory stand-in for database.Repo.
type memStore struct {
	mu sync.Mutex

	positions []models.Position
	accounts  []models.Account
	postings  []models.FiatTransaction
	assets    []models.CryptoAsset
	prices    map[string]models.CryptoPrice
	rates     map[string][]models.ExchangeRate

	calls       int
	priceCalls  [][]string
	failWith    error
	tracked     []string
	storedRates []models.ExchangeRate
	storedPx    []models.CryptoPrice
	lastKnown   map[string]decimal.Decimal
}

func newMemStore() *memStore {
	return &memStore{prices: map[string]models.CryptoPrice{}, rates: map[string][]models.ExchangeRate{}}
}

func (m *memStore) touch() error {
	m.calls++
	return m.failWith
}

func (m *memStore) LatestCryptoPrices(ctx context.Context, symbols []string) (map[string]models.CryptoPrice, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	m.priceCalls = append(m.priceCalls, symbols)
	out := map[string]models.CryptoPrice{}
	for _, s := range symbols {
		if p, ok := m.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func (m *memStore) LatestExchangeRates(ctx context.Context, pair string) ([]models.ExchangeRate, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	return m.rates[pair], nil
}

func (m *memStore) FindOpenPositions(ctx context.Context, userID string) ([]models.Position, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	out := []models.Position{}
	for _, p := range m.positions {
		if p.UserID == userID && p.Status == models.StatusOpen {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TransactionDate.After(out[j].TransactionDate) })
	return out, nil
}

func (m *memStore) GetPosition(ctx context.Context, userID, id string) (models.Position, error) {
	for _, p := range m.positions {
		if p.ID == id && p.UserID == userID {
			return p, nil
		}
	}
	return models.Position{}, errors.Wrap(models.ErrNotFound, id)
}

func (m *memStore) CreatePosition(ctx context.Context, p models.Position) (models.Position, error) {
	out, err := m.CreatePositions(ctx, []models.Position{p})
	if err != nil {
		return models.Position{}, err
	}
	return out[0], nil
}

func (m *memStore) CreatePositions(ctx context.Context, ps []models.Position) ([]models.Position, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	for i := range ps {
		ps[i].CreatedAt = time.Now().UTC()
	}
	m.positions = append(m.positions, ps...)
	return ps, nil
}

func (m *memStore) ClosePosition(ctx context.Context, userID, id string, exitDate time.Time, finalQty decimal.NullDecimal) (models.Position, error) {
	for i, p := range m.positions {
		if p.ID != id || p.UserID != userID {
			continue
		}
		if p.Status != models.StatusOpen {
			return models.Position{}, errors.Wrap(models.ErrInvalidTransition, id)
		}
		p.Status = models.StatusClosed
		p.ExitDate = &exitDate
		if finalQty.Valid {
			p.CurrentQuantity = finalQty
		}
		m.positions[i] = p
		return p, nil
	}
	return models.Position{}, errors.Wrap(models.ErrNotFound, id)
}

func (m *memStore) ClearPositions(ctx context.Context, userID string) (int64, error) {
	kept := m.positions[:0]
	var n int64
	for _, p := range m.positions {
		if p.UserID == userID {
			n++
			continue
		}
		kept = append(kept, p)
	}
	m.positions = kept
	return n, nil
}

func (m *memStore) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	if err := m.touch(); err != nil {
		return models.Account{}, err
	}
	a.Balance = a.InitialBalance
	m.accounts = append(m.accounts, a)
	return a, nil
}

func (m *memStore) FindAccounts(ctx context.Context, userID, currency string) ([]models.Account, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	out := []models.Account{}
	for _, a := range m.accounts {
		if a.UserID == userID && (currency == "" || a.Currency == currency) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) GetAccount(ctx context.Context, userID, accountID string) (models.Account, error) {
	for _, a := range m.accounts {
		if a.ID == accountID && a.UserID == userID {
			return a, nil
		}
	}
	return models.Account{}, errors.Wrap(models.ErrNotFound, accountID)
}

func (m *memStore) PostTransaction(ctx context.Context, userID string, t models.FiatTransaction) (models.FiatTransaction, models.Account, error) {
	for i, a := range m.accounts {
		if a.ID == t.AccountID && a.UserID == userID {
			a.Balance = a.Balance.Add(t.Amount)
			m.accounts[i] = a
			m.postings = append(m.postings, t)
			return t, a, nil
		}
	}
	return models.FiatTransaction{}, models.Account{}, errors.Wrap(models.ErrNotFound, t.AccountID)
}

func (m *memStore) TransactionSum(ctx context.Context, accountID string) (decimal.Decimal, int, error) {
	total, n := decimal.Zero, 0
	for _, t := range m.postings {
		if t.AccountID == accountID {
			total = total.Add(t.Amount)
			n++
		}
	}
	return total, n, nil
}

func (m *memStore) FindCryptoAssets(ctx context.Context, userID string) ([]models.CryptoAsset, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	out := []models.CryptoAsset{}
	for _, a := range m.assets {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ReplaceCryptoAssets(ctx context.Context, userID, exchange string, assets []models.CryptoAsset) ([]models.CryptoAsset, error) {
	kept := []models.CryptoAsset{}
	for _, a := range m.assets {
		if a.UserID != userID || a.Exchange != exchange {
			kept = append(kept, a)
		}
	}
	m.assets = append(kept, assets...)
	return assets, nil
}

func (m *memStore) TrackedSymbols(ctx context.Context) ([]string, error) {
	return m.tracked, m.failWith
}

func (m *memStore) InsertCryptoPrices(ctx context.Context, prices []models.CryptoPrice) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storedPx = append(m.storedPx, prices...)
	return len(prices), nil
}

func (m *memStore) InsertExchangeRates(ctx context.Context, rates []models.ExchangeRate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storedRates = append(m.storedRates, rates...)
	return len(rates), nil
}

func (m *memStore) UpdateLastKnownPrices(ctx context.Context, prices map[string]decimal.Decimal) error {
	m.lastKnown = prices
	return nil
}

type fakePrices struct {
	got    []string
	prices map[string]models.CryptoPrice
	err    error
}

func (f *fakePrices) FetchPrices(ctx context.Context, symbols []string) (map[string]models.CryptoPrice, error) {
	f.got = symbols
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]models.CryptoPrice{}
	for _, s := range symbols {
		if p, ok := f.prices[strings.ToUpper(s)]; ok {
			out[s] = p
		}
	}
	return out, nil
}

type fakeRate struct {
	source, pair string
	rate         decimal.NullDecimal
	err          error
}

func (f fakeRate) Source() string { return f.source }
func (f fakeRate) Pair() string   { return f.pair }
func (f fakeRate) FetchRate(ctx context.Context) (models.ExchangeRate, error) {
	if f.err != nil {
		return models.ExchangeRate{}, f.err
	}
	return models.ExchangeRate{CurrencyPair: f.pair, Source: f.source, Rate: f.rate, Timestamp: time.Now().UTC()}, nil
}
