// Package messaging provides outbound patient messaging with template
// rendering and a WhatsApp gateway sender.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Sender delivers a message body to a phone number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// WhatsAppSender sends text messages through a WhatsApp Cloud style
// gateway (POST <gateway>/messages with a bearer token).
type WhatsAppSender struct {
	gatewayURL string
	token      string
	httpClient *http.Client
}

// NewWhatsAppSender creates a sender for the given gateway URL and token.
func NewWhatsAppSender(gatewayURL, token string) (*WhatsAppSender, error) {
	if gatewayURL == "" || token == "" {
		return nil, fmt.Errorf("message gateway URL and token must be set")
	}
	return &WhatsAppSender{
		gatewayURL: gatewayURL,
		token:      token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

type gatewayResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send posts a text message to the gateway.
func (s *WhatsAppSender) Send(ctx context.Context, to, body string) error {
	msg := textMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	msg.Text.Body = body

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := s.gatewayURL + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var gwResp gatewayResponse
	if err := json.Unmarshal(respBody, &gwResp); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(gwResp.Messages) == 0 {
		return fmt.Errorf("no message ID in gateway response")
	}
	return nil
}

// SendCall records a single call to a MockSender.
type SendCall struct {
	To   string
	Body string
}

// MockSender is a test double for Sender.
type MockSender struct {
	mu         sync.Mutex
	calls      []SendCall
	ShouldFail bool
	FailError  string
}

// Send records the call and optionally returns an error.
func (m *MockSender) Send(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SendCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded calls.
func (m *MockSender) Calls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendCall, len(m.calls))
	copy(out, m.calls)
	return out
}
