package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cardperks-go/internal/config"
)

// Transaction is the aggregator's wire shape for one transaction. Every
// field is preserved through the upsert into local storage.
type Transaction struct {
	TransactionID         string   `json:"transaction_id"`
	AccountID             string   `json:"account_id"`
	Amount                float64  `json:"amount"`
	Date                  string   `json:"date"`
	Name                  string   `json:"name"`
	MerchantName          string   `json:"merchant_name"`
	Category              []string `json:"category"`
	PersonalFinanceDetail string   `json:"personal_finance_category_detailed"`
	PaymentChannel        string   `json:"payment_channel"`
	Pending               bool     `json:"pending"`
}

type RemovedTransaction struct {
	TransactionID string `json:"transaction_id"`
}

// SyncResponse is one page of the delta feed.
type SyncResponse struct {
	Added      []Transaction        `json:"added"`
	Modified   []Transaction        `json:"modified"`
	Removed    []RemovedTransaction `json:"removed"`
	HasMore    bool                 `json:"has_more"`
	NextCursor string               `json:"next_cursor"`
}

// AccountBalance is one account row from the balance endpoint.
type AccountBalance struct {
	AccountID    string  `json:"account_id"`
	Name         string  `json:"name"`
	OfficialName string  `json:"official_name"`
	Mask         string  `json:"mask"`
	Current      float64 `json:"current"`
	Available    float64 `json:"available"`
	Limit        float64 `json:"limit"`
}

// Client is the slice of the aggregation API this service consumes. The
// sync orchestrator and balance refresher depend on this interface, not the
// HTTP implementation.
type Client interface {
	SyncTransactions(ctx context.Context, accessToken, cursor string) (*SyncResponse, error)
	GetBalances(ctx context.Context, accessToken string) ([]AccountBalance, error)
}

type HTTPClient struct {
	cfg  *config.Config
	http *http.Client
}

func NewHTTPClient(cfg *config.Config) *HTTPClient {
	return &HTTPClient{cfg: cfg, http: &http.Client{}}
}

// SyncTransactions fetches one page of transaction deltas. The per-call
// timeout bounds a hung upstream so it cannot stall the pagination loop.
func (c *HTTPClient) SyncTransactions(ctx context.Context, accessToken, cursor string) (*SyncResponse, error) {
	body := map[string]any{
		"access_token": accessToken,
	}
	if cursor != "" {
		body["cursor"] = cursor
	}

	var out SyncResponse
	if err := c.post(ctx, "/transactions/sync", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetBalances(ctx context.Context, accessToken string) ([]AccountBalance, error) {
	body := map[string]any{
		"access_token": accessToken,
	}

	var out struct {
		Accounts []AccountBalance `json:"accounts"`
	}
	if err := c.post(ctx, "/accounts/balance/get", body, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body map[string]any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.AggregatorTimeout)*time.Second)
	defer cancel()

	b, _ := json.Marshal(body)
	req, _ := http.NewRequestWithContext(ctx, "POST", c.cfg.AggregatorBaseURL+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		bs, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("aggregator error %s: %s", path, string(bs))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
