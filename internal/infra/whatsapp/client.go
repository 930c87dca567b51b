package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"donation-app/internal/infra/breaker"

	"github.com/sony/gobreaker"
)

var ErrNotConfigured = errors.New("whatsapp is not configured")

type Config struct {
	APIURL        string
	Token         string
	PhoneNumberID string
}

// Client sends text messages through the WhatsApp Cloud API.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		breaker: breaker.New("whatsapp", time.Minute),
	}
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (c *Client) SendText(ctx context.Context, to, body string) error {
	if c.cfg.Token == "" || c.cfg.PhoneNumberID == "" {
		return ErrNotConfigured
	}

	msg := textMessage{MessagingProduct: "whatsapp", To: strings.TrimPrefix(to, "+"), Type: "text"}
	msg.Text.Body = body
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = breaker.Execute(c.breaker, func() (struct{}, error) {
		return struct{}{}, c.post(ctx, payload)
	})
	return err
}

func (c *Client) post(ctx context.Context, payload []byte) error {
	endpoint := fmt.Sprintf("%s/%s/messages", strings.TrimSuffix(c.cfg.APIURL, "/"), c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp api returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
