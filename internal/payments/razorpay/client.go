package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gatherly/events-api/internal/domain"
)

// Client talks to the Razorpay Orders API over HTTP basic auth. Signature
// verification never leaves the process; only order creation goes upstream.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

func NewClient(baseURL, keyID, keySecret string) *Client {
	return &Client{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) KeyID() string { return c.keyID }

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (e *errorResponse) Err() error {
	return fmt.Errorf("razorpay api error: %s - %s", e.Error.Code, e.Error.Description)
}

func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes domain.OrderNotes) (domain.GatewayOrder, error) {
	body, err := json.Marshal(orderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Notes: map[string]string{
			"event_id":     notes.EventID.String(),
			"user_id":      notes.UserID.String(),
			"ticket_count": fmt.Sprintf("%d", notes.TicketCount),
		},
	})
	if err != nil {
		return domain.GatewayOrder{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return domain.GatewayOrder{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GatewayOrder{}, fmt.Errorf("razorpay create order: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.GatewayOrder{}, err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Code != "" {
			return domain.GatewayOrder{}, apiErr.Err()
		}
		return domain.GatewayOrder{}, fmt.Errorf("razorpay create order: unexpected status %d", resp.StatusCode)
	}

	var out orderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.GatewayOrder{}, err
	}

	return domain.GatewayOrder{
		ID:       out.ID,
		Amount:   out.Amount,
		Currency: out.Currency,
		Receipt:  out.Receipt,
	}, nil
}
