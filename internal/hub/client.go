package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/tindahan/internal/interpret"
)

// Client posts transactions to the central hub
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a hub client for baseURL, e.g. http://hub.local:4000
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send delivers one transaction. Any 2xx answer counts as accepted.
func (c *Client) Send(ctx context.Context, tx *interpret.TransactionOutput) error {
	jsonData, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshaling transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transactions", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling hub: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("hub rejected %s (status %d): %s", tx.TransactionID, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
