package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func baseURL() string {
	if v := os.Getenv("E2E_BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	// 1. Health check
	checkEndpoint("GET", "/health", nil, 200)

	userID := fmt.Sprintf("e2e-user-%d", time.Now().Unix())

	// 2. Empty user has an empty report
	checkEndpoint("GET", "/pnl/"+userID, nil, 200)

	// 3. Record a batch, then a rejected batch
	positions := []map[string]any{
		{"target_coin_symbol": "BTC", "venue": "Binance", "transaction_date": "2025-01-10",
			"investment_coin_symbol": "USDT", "investment_amount": "1000", "entry_price": "50000"},
		{"target_coin_symbol": "ETH", "venue": "OKX", "transaction_date": "2025-01-12",
			"investment_coin_symbol": "USDT", "investment_amount": "600", "entry_price": "3000"},
	}
	var created []map[string]any
	decode(checkEndpoint("POST", "/positions/"+userID, positions, 201), &created)
	checkEndpoint("POST", "/positions/"+userID, []map[string]any{{"venue": "Binance"}}, 400)

	// 4. PnL and breakdown
	checkEndpoint("GET", "/pnl/"+userID, nil, 200)
	checkEndpoint("GET", "/breakdown/"+userID+"?currency=TWD", nil, 200)
	checkEndpoint("GET", "/breakdown/"+userID+"?currency=JPY", nil, 400)

	// 5. Fiat account and a posting
	var acct map[string]any
	decode(checkEndpoint("POST", "/accounts/"+userID, map[string]any{
		"account_name": "Main", "bank_name": "CTBC", "currency": "TWD", "initial_balance": "1000",
	}, 201), &acct)
	accountID, _ := acct["id"].(string)
	checkEndpoint("POST", "/accounts/"+userID+"/"+accountID+"/transactions", map[string]any{
		"description": "salary", "amount": "500", "transaction_type": "income",
	}, 201)
	checkEndpoint("GET", "/accounts/"+userID+"/"+accountID+"/consistency", nil, 200)

	// 6. Exchange inventory
	checkEndpoint("PUT", "/crypto-assets/"+userID+"/Binance", map[string]any{
		"spot":   []map[string]any{{"coin_symbol": "BTC", "quantity": "0.01"}},
		"locked": []map[string]any{{"coin_symbol": "BTC", "quantity": "0.02"}},
	}, 200)
	checkEndpoint("GET", "/breakdown/"+userID, nil, 200)

	// 7. Close a position twice
	if len(created) > 0 {
		id, _ := created[0]["id"].(string)
		checkEndpoint("POST", "/positions/"+userID+"/"+id+"/close", nil, 200)
		checkEndpoint("POST", "/positions/"+userID+"/"+id+"/close", nil, 409)
	}

	// 8. Clean up
	checkEndpoint("DELETE", "/positions/"+userID, nil, 200)

	fmt.Println("ALL TESTS PASSED")
}

func checkEndpoint(method, path string, body interface{}, expectedStatus int) []byte {
	fmt.Printf("Testing %s %s...\n", method, path)
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, baseURL()+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		log.Fatalf("Expected status %d, got %d. Body: %s", expectedStatus, resp.StatusCode, string(respBody))
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return respBody
}

func decode(b []byte, v any) {
	if err := json.Unmarshal(b, v); err != nil {
		log.Fatalf("decode response: %v", err)
	}
}
