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

// PositionInput is a position as submitted by a caller. Pointer fields are
// nil when the caller left them out.
type PositionInput struct {
	TargetCoinSymbol     string           `json:"target_coin_symbol"`
	Venue                string           `json:"venue"`
	Status               string           `json:"status"`
	InvestmentType       string           `json:"investment_type"`
	Sector               string           `json:"sector"`
	Strategy             string           `json:"strategy"`
	TransactionDate      string           `json:"transaction_date"`
	ExitDate             string           `json:"exit_date"`
	InvestmentCoinSymbol string           `json:"investment_coin_symbol"`
	InvestmentAmount     *decimal.Decimal `json:"investment_amount"`
	EntryPrice           *decimal.Decimal `json:"entry_price"`
	CurrentQuantity      *decimal.Decimal `json:"current_quantity"`
	Fee                  *decimal.Decimal `json:"fee"`
	RewardAmount         *decimal.Decimal `json:"reward_amount"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006/01/02"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// toPosition validates in and reports every problem into verr under index.
func (in PositionInput) toPosition(userID string, index int, verr *models.ValidationError) models.Position {
	p := models.Position{
		UserID:               userID,
		TargetCoinSymbol:     strings.ToUpper(strings.TrimSpace(in.TargetCoinSymbol)),
		Venue:                strings.TrimSpace(in.Venue),
		Sector:               strings.TrimSpace(in.Sector),
		Strategy:             strings.TrimSpace(in.Strategy),
		InvestmentCoinSymbol: strings.ToUpper(strings.TrimSpace(in.InvestmentCoinSymbol)),
		InvestmentType:       models.InvestmentSpot,
	}

	if p.TargetCoinSymbol == "" {
		verr.Add(index, "target_coin_symbol", "is required")
	}
	if p.Venue == "" {
		verr.Add(index, "venue", "is required")
	}
	if p.InvestmentCoinSymbol == "" {
		verr.Add(index, "investment_coin_symbol", "is required")
	}

	if status, ok := models.ParsePositionStatus(in.Status); ok {
		p.Status = status
	} else {
		verr.Add(index, "status", "must be OPEN or CLOSED")
	}
	if t := strings.TrimSpace(in.InvestmentType); t != "" {
		p.InvestmentType = models.InvestmentType(strings.ToLower(t))
		if !p.InvestmentType.Valid() {
			verr.Add(index, "investment_type", "must be one of spot, exchange_activity, airdrop, liquidity_mining")
		}
	}

	switch {
	case strings.TrimSpace(in.TransactionDate) == "":
		verr.Add(index, "transaction_date", "is required")
	default:
		if t, ok := parseDate(in.TransactionDate); ok {
			p.TransactionDate = t
		} else {
			verr.Add(index, "transaction_date", "must be a date (YYYY-MM-DD or RFC 3339)")
		}
	}
	if strings.TrimSpace(in.ExitDate) != "" {
		if t, ok := parseDate(in.ExitDate); ok {
			p.ExitDate = &t
		} else {
			verr.Add(index, "exit_date", "must be a date (YYYY-MM-DD or RFC 3339)")
		}
	}

	switch {
	case in.InvestmentAmount == nil:
		verr.Add(index, "investment_amount", "is required")
	case in.InvestmentAmount.IsNegative():
		verr.Add(index, "investment_amount", "must not be negative")
	default:
		p.InvestmentAmount = *in.InvestmentAmount
	}
	switch {
	case in.EntryPrice == nil:
		verr.Add(index, "entry_price", "is required")
	case in.EntryPrice.IsNegative():
		verr.Add(index, "entry_price", "must not be negative")
	default:
		p.EntryPrice = *in.EntryPrice
	}

	if in.CurrentQuantity != nil {
		if in.CurrentQuantity.IsNegative() {
			verr.Add(index, "current_quantity", "must not be negative")
		}
		p.CurrentQuantity = decimal.NullDecimal{Decimal: *in.CurrentQuantity, Valid: true}
	}
	if in.Fee != nil {
		if in.Fee.IsNegative() {
			verr.Add(index, "fee", "must not be negative")
		}
		p.Fee = *in.Fee
	}
	if in.RewardAmount != nil {
		p.RewardAmount = decimal.NullDecimal{Decimal: *in.RewardAmount, Valid: true}
	}
	return p
}

type PositionService struct {
	store  PositionStore
	market marketData
	log    *logrus.Logger
}

func NewPositionService(store PositionStore, prices PriceStore, rates RateStore, fb valuation.Fallbacks, log *logrus.Logger) *PositionService {
	return &PositionService{
		store:  store,
		market: marketData{prices: prices, rates: rates, fallbacks: fb, log: log},
		log:    log,
	}
}

// RecordPositions validates every input, then persists them together. Any
// invalid item rejects the whole batch with one aggregated ValidationError
// and nothing is written.
func (s *PositionService) RecordPositions(ctx context.Context, userID string, inputs []PositionInput) ([]models.Position, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, models.NewValidationError("user_id", "is required")
	}
	if len(inputs) == 0 {
		return nil, models.NewValidationError("positions", "at least one position is required")
	}

	verr := &models.ValidationError{}
	ps := make([]models.Position, 0, len(inputs))
	for i, in := range inputs {
		ps = append(ps, in.toPosition(userID, i, verr))
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	s.stampValueUSDT(ctx, ps)
	for i := range ps {
		ps[i].ID = uuid.NewString()
	}

	if len(ps) == 1 {
		created, err := s.store.CreatePosition(ctx, ps[0])
		if err != nil {
			return nil, err
		}
		return []models.Position{created}, nil
	}
	return s.store.CreatePositions(ctx, ps)
}

// stampValueUSDT records each position's cost in USDT at the current
// snapshot. Missing quotes leave the value null; a failed lookup is logged
// and does not block recording.
func (s *PositionService) stampValueUSDT(ctx context.Context, ps []models.Position) {
	coins := make([]string, 0, len(ps))
	for _, p := range ps {
		coins = append(coins, p.InvestmentCoinSymbol)
	}
	book, err := s.market.priceBook(ctx, coins)
	if err != nil {
		s.log.Warnf("value in USDT not recorded: %v", err)
		return
	}
	for i := range ps {
		usd := book.ToUSD(ps[i].InvestmentAmount, ps[i].InvestmentCoinSymbol)
		if usd.Valid {
			ps[i].ValueUSDT = decimal.NullDecimal{Decimal: usd.Decimal.Round(2), Valid: true}
		}
	}
}

// CloseInput carries the optional values applied when a position closes.
type CloseInput struct {
	ExitDate      string           `json:"exit_date"`
	FinalQuantity *decimal.Decimal `json:"final_quantity"`
}

// ClosePosition moves an OPEN position to CLOSED. The exit date defaults to
// now.
func (s *PositionService) ClosePosition(ctx context.Context, userID, id string, in CloseInput) (models.Position, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Position{}, models.NewValidationError("id", "must be a UUID")
	}
	exit := time.Now().UTC()
	if strings.TrimSpace(in.ExitDate) != "" {
		t, ok := parseDate(in.ExitDate)
		if !ok {
			return models.Position{}, models.NewValidationError("exit_date", "must be a date (YYYY-MM-DD or RFC 3339)")
		}
		exit = t
	}
	var qty decimal.NullDecimal
	if in.FinalQuantity != nil {
		if in.FinalQuantity.IsNegative() {
			return models.Position{}, models.NewValidationError("final_quantity", "must not be negative")
		}
		qty = decimal.NullDecimal{Decimal: *in.FinalQuantity, Valid: true}
	}
	p, err := s.store.ClosePosition(ctx, userID, id, exit, qty)
	if err != nil {
		return models.Position{}, err
	}
	s.log.WithFields(logrus.Fields{"user": userID, "position": id}).Info("position closed")
	return p, nil
}

func (s *PositionService) ClearPositions(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.ClearPositions(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"user": userID, "removed": n}).Info("positions cleared")
	return n, nil
}
