// Package notify delivers push notifications for emitted order events.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cashdrop/internal/model"
)

// PushClient talks to the external push gateway. Delivery is best effort;
// the gateway's internals are not ours.
type PushClient struct {
	baseURL string
	client  *http.Client
}

type pushRequest struct {
	EventID   string          `json:"event_id"`
	OrderID   string          `json:"order_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func NewPushClient(baseURL string) *PushClient {
	return &PushClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *PushClient) Send(ctx context.Context, ev *model.OrderEvent) error {
	body, err := json.Marshal(pushRequest{
		EventID:   ev.ID,
		OrderID:   ev.OrderID,
		EventType: ev.EventType,
		Payload:   ev.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}

	url := fmt.Sprintf("%s/api/push", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusTooManyRequests:
		return errors.New("rate limit exceeded")
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status: %d, body: %s", resp.StatusCode, string(respBody))
	}
}
