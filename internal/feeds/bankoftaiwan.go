package feeds

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"fintracker/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
)

const (
	audRowLabel  = "澳幣 (AUD)"
	cashBuyCell  = "本行現金買入"
	cashSellCell = "本行現金賣出"
)

// BankOfTaiwan scrapes the TWD/AUD cash buy and sell rates from the Bank of
// Taiwan rate board.
type BankOfTaiwan struct {
	URL    string
	Client *http.Client
}

func NewBankOfTaiwan(url string, timeout time.Duration) *BankOfTaiwan {
	return &BankOfTaiwan{URL: url, Client: newClient(timeout)}
}

func (b *BankOfTaiwan) Source() string { return models.SourceBankOfTaiwan }

func (b *BankOfTaiwan) Pair() string { return models.PairTWDAUD }

func (b *BankOfTaiwan) FetchRate(ctx context.Context) (models.ExchangeRate, error) {
	body, err := get(ctx, b.Client, b.URL)
	if err != nil {
		return models.ExchangeRate{}, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return models.ExchangeRate{}, upstream("parse rate board: %v", err)
	}

	row := findRow(doc, audRowLabel)
	if row == nil {
		return models.ExchangeRate{}, upstream("rate board has no row for %s", audRowLabel)
	}
	buy, okBuy := cellByDataTable(row, cashBuyCell)
	sell, okSell := cellByDataTable(row, cashSellCell)
	if !okBuy || !okSell {
		return models.ExchangeRate{}, upstream("row %s lacks %s or %s", audRowLabel, cashBuyCell, cashSellCell)
	}
	buyRate, err := decimal.NewFromString(buy)
	if err != nil {
		return models.ExchangeRate{}, upstream("buy rate %q: %v", buy, err)
	}
	sellRate, err := decimal.NewFromString(sell)
	if err != nil {
		return models.ExchangeRate{}, upstream("sell rate %q: %v", sell, err)
	}

	return models.ExchangeRate{
		CurrencyPair: models.PairTWDAUD,
		Source:       models.SourceBankOfTaiwan,
		BuyRate:      decimal.NullDecimal{Decimal: buyRate, Valid: true},
		SellRate:     decimal.NullDecimal{Decimal: sellRate, Valid: true},
		Timestamp:    time.Now().UTC(),
	}, nil
}

// findRow returns the innermost <tr> enclosing a <td> whose text contains
// label.
func findRow(n *html.Node, label string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if row := findRow(c, label); row != nil {
			return row
		}
	}
	if n.Type == html.ElementNode && n.Data == "td" && strings.Contains(textOf(n), label) {
		for p := n.Parent; p != nil; p = p.Parent {
			if p.Type == html.ElementNode && p.Data == "tr" {
				return p
			}
		}
	}
	return nil
}

func cellByDataTable(n *html.Node, name string) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "td" {
		for _, a := range n.Attr {
			if a.Key == "data-table" && a.Val == name {
				return strings.TrimSpace(textOf(n)), true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if v, ok := cellByDataTable(c, name); ok {
			return v, true
		}
	}
	return "", false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
