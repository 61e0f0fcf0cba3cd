package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendClient delivers email through the Resend HTTP API.
type ResendClient struct {
	apiKey string
	from   string
	client *http.Client
}

func NewResendClient(apiKey, from string, timeout time.Duration) *ResendClient {
	return &ResendClient{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: timeout},
	}
}

// Send delivers one HTML email to one recipient.
func (c *ResendClient) Send(ctx context.Context, to, subject, html string) error {
	payload := map[string]any{
		"from":    c.from,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend API returned status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
