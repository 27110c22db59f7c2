package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookSender POSTs each message as JSON to an external endpoint.
type WebhookSender struct {
	client *resty.Client
	url    string
}

func NewWebhookSender(url string) *WebhookSender {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &WebhookSender{client: client, url: url}
}

func (s *WebhookSender) Send(ctx context.Context, fromHospitalID, toUserID int64, text string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(newMessage(fromHospitalID, toUserID, text)).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook responded %d", resp.StatusCode())
	}
	return nil
}
