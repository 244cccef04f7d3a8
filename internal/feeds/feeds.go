// Package feeds fetches crypto prices and fiat rates from third-party
// sources. Every failure is reported as models.ErrUpstreamUnavailable.
package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fintracker/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const userAgent = "fintracker/1.0"

func newClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func upstream(format string, args ...any) error {
	return errors.Wrapf(models.ErrUpstreamUnavailable, format, args...)
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, upstream("build request %s: %v", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, upstream("request %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, upstream("%s: rate limit exceeded", url)
		}
		return nil, upstream("%s: unexpected status code %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upstream("read %s: %v", url, err)
	}
	return body, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	body, err := get(ctx, client, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return upstream("decode %s: %v", url, err)
	}
	return nil
}

// toDecimal accepts the shapes tickers use for prices: JSON numbers and
// numeric strings.
func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), nil
	case string:
		return decimal.NewFromString(x)
	case json.Number:
		return decimal.NewFromString(x.String())
	}
	return decimal.Zero, fmt.Errorf("not a number: %v", v)
}
