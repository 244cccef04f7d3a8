package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// Labels used in the bookkeeping sheets positions are imported from.
const (
	labelOpen   = "持有中"
	labelClosed = "已售出"
)

// ParsePositionStatus accepts OPEN/CLOSED in any case as well as the
// 持有中/已售出 labels. An empty string means OPEN.
func ParsePositionStatus(s string) (PositionStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(StatusOpen), labelOpen:
		return StatusOpen, true
	case string(StatusClosed), labelClosed:
		return StatusClosed, true
	}
	return "", false
}

func (s PositionStatus) Label() string {
	if s == StatusClosed {
		return labelClosed
	}
	return labelOpen
}

type InvestmentType string

const (
	InvestmentSpot             InvestmentType = "spot"
	InvestmentExchangeActivity InvestmentType = "exchange_activity"
	InvestmentAirdrop          InvestmentType = "airdrop"
	InvestmentLiquidityMining  InvestmentType = "liquidity_mining"
)

func (t InvestmentType) Valid() bool {
	switch t {
	case InvestmentSpot, InvestmentExchangeActivity, InvestmentAirdrop, InvestmentLiquidityMining:
		return true
	}
	return false
}

// Position is one logged crypto investment (a lot). Quantities are derived
// from InvestmentAmount/EntryPrice unless CurrentQuantity overrides them.
type Position struct {
	ID                   string              `db:"id" json:"id"`
	UserID               string              `db:"user_id" json:"user_id"`
	TargetCoinSymbol     string              `db:"target_coin_symbol" json:"target_coin_symbol"`
	Venue                string              `db:"venue" json:"venue"`
	Status               PositionStatus      `db:"status" json:"status"`
	InvestmentType       InvestmentType      `db:"investment_type" json:"investment_type"`
	Sector               string              `db:"sector" json:"sector,omitempty"`
	Strategy             string              `db:"strategy" json:"strategy,omitempty"`
	TransactionDate      time.Time           `db:"transaction_date" json:"transaction_date"`
	ExitDate             *time.Time          `db:"exit_date" json:"exit_date"`
	InvestmentCoinSymbol string              `db:"investment_coin_symbol" json:"investment_coin_symbol"`
	InvestmentAmount     decimal.Decimal     `db:"investment_amount" json:"investment_amount"`
	EntryPrice           decimal.Decimal     `db:"entry_price" json:"entry_price"`
	CurrentQuantity      decimal.NullDecimal `db:"current_quantity" json:"current_quantity"`
	Fee                  decimal.Decimal     `db:"fee" json:"fee"`
	RewardAmount         decimal.NullDecimal `db:"reward_amount" json:"reward_amount"`
	ValueUSDT            decimal.NullDecimal `db:"value_usdt" json:"value_usdt"`
	CreatedAt            time.Time           `db:"created_at" json:"created_at"`
}

type TransactionType string

const (
	TxIncome      TransactionType = "income"
	TxExpense     TransactionType = "expense"
	TxTransfer    TransactionType = "transfer"
	TxDeposit     TransactionType = "deposit"
	TxWithdrawal  TransactionType = "withdrawal"
	TxLoanPayment TransactionType = "loan_payment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxIncome, TxExpense, TxTransfer, TxDeposit, TxWithdrawal, TxLoanPayment:
		return true
	}
	return false
}

// Account is a fiat holding at one institution.
type Account struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"user_id"`
	Name           string          `db:"account_name" json:"account_name"`
	BankName       string          `db:"bank_name" json:"bank_name"`
	Currency       string          `db:"currency" json:"currency"`
	AccountType    string          `db:"account_type" json:"account_type"`
	InitialBalance decimal.Decimal `db:"initial_balance" json:"initial_balance"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

type FiatTransaction struct {
	ID              string          `db:"id" json:"id"`
	AccountID       string          `db:"account_id" json:"account_id"`
	TransactionDate time.Time       `db:"transaction_date" json:"transaction_date"`
	Description     string          `db:"description" json:"description"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	TransactionType TransactionType `db:"transaction_type" json:"transaction_type"`
	Status          string          `db:"status" json:"status"`
	Notes           string          `db:"notes" json:"notes,omitempty"`
}

// CryptoAsset is the current inventory of one coin on one exchange.
type CryptoAsset struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"user_id"`
	Exchange       string          `db:"exchange" json:"exchange"`
	CoinSymbol     string          `db:"coin_symbol" json:"coin_symbol"`
	Quantity       decimal.Decimal `db:"quantity" json:"quantity"`
	AverageCost    decimal.Decimal `db:"average_cost" json:"average_cost"`
	LastKnownPrice decimal.Decimal `db:"last_known_price" json:"last_known_price"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Currency pairs and sources written by the snapshot refresher.
const (
	PairTWDAUD  = "TWD/AUD"
	PairTWDUSDT = "TWD/USDT"

	SourceBankOfTaiwan = "BankOfTaiwan"
	SourceBitopro      = "Bitopro"
	SourceMAX          = "MAX"
)

type ExchangeRate struct {
	CurrencyPair string              `db:"currency_pair" json:"currency_pair"`
	Source       string              `db:"source" json:"source"`
	Rate         decimal.NullDecimal `db:"rate" json:"rate"`
	BuyRate      decimal.NullDecimal `db:"buy_rate" json:"buy_rate"`
	SellRate     decimal.NullDecimal `db:"sell_rate" json:"sell_rate"`
	Timestamp    time.Time           `db:"timestamp" json:"timestamp"`
}

type CryptoPrice struct {
	CoinSymbol string              `db:"coin_symbol" json:"coin_symbol"`
	USDPrice   decimal.NullDecimal `db:"usd_price" json:"usd_price"`
	TWDPrice   decimal.NullDecimal `db:"twd_price" json:"twd_price"`
	USDTPrice  decimal.NullDecimal `db:"usdt_price" json:"usdt_price"`
	Timestamp  time.Time           `db:"timestamp" json:"timestamp"`
}
