package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Gateway sends through the WhatsApp HTTP gateway that owns the connected
// instances. The transport can hang, so every call runs under its own timeout.
type Gateway struct {
	BaseURL string
	Token   string
	Client  *http.Client
	Timeout time.Duration
}

func NewGateway(baseURL, token string) *Gateway {
	return &Gateway{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{},
		Timeout: 30 * time.Second,
	}
}

type gatewayResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

func (g *Gateway) SendOne(ctx context.Context, instanceID, recipient string, p Payload) (string, error) {
	body := struct {
		To string `json:"to"`
		Payload
	}{To: recipient, Payload: p}

	buf, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode send request: %w", err)
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("%s/instances/%s/messages", g.BaseURL, instanceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return "", fmt.Errorf("gateway: %s", out.Error)
		}
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return out.MessageID, nil
}
