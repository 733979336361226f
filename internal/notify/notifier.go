// Package notify delivers on_complete actions: notification emails through
// SendGrid and webhook POSTs. Callers treat delivery as best-effort.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Notifier struct {
	sendgridKey string
	fromName    string
	fromAddress string
	httpClient  *http.Client
}

func New(sendgridKey, fromName, fromAddress string) *Notifier {
	return &Notifier{
		sendgridKey: sendgridKey,
		fromName:    fromName,
		fromAddress: fromAddress,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (n *Notifier) SendEmail(ctx context.Context, to, subject, body string) error {
	if n.sendgridKey == "" {
		return errors.New("sendgrid is not configured")
	}

	from := mail.NewEmail(n.fromName, n.fromAddress)
	toEmail := mail.NewEmail("", to)
	email := mail.NewSingleEmail(from, subject, toEmail, body, body)

	client := sendgrid.NewSendClient(n.sendgridKey)
	response, err := client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	return nil
}

func (n *Notifier) PostWebhook(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
