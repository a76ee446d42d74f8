package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	ProductionBaseURL = "https://api.africastalking.com"
	SandboxBaseURL    = "https://api.sandbox.africastalking.com"

	messagingPath = "/version1/messaging"
	statusSuccess = "Success"
)

var ErrNotDelivered = errors.New("message not accepted by gateway")

type AfricasTalkingConfig struct {
	Username  string
	APIKey    string
	Env       string
	Shortcode string
	SenderID  string
	BaseURL   string
	Timeout   time.Duration
}

// Configured reports whether credentials are present.
func (c AfricasTalkingConfig) Configured() bool {
	return c.Username != "" && c.APIKey != ""
}

func (c AfricasTalkingConfig) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	switch strings.ToLower(c.Env) {
	case "production":
		return ProductionBaseURL
	default:
		return SandboxBaseURL
	}
}

func (c AfricasTalkingConfig) sender() string {
	if c.Shortcode != "" {
		return c.Shortcode
	}
	return c.SenderID
}

type messagingResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			Number     string `json:"number"`
			Status     string `json:"status"`
			StatusCode int    `json:"statusCode"`
			Cost       string `json:"cost"`
			MessageID  string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// AfricasTalkingSender posts messages to the Africa's Talking bulk SMS API.
type AfricasTalkingSender struct {
	client *resty.Client
	cfg    AfricasTalkingConfig
}

func NewAfricasTalkingSender(cfg AfricasTalkingConfig) *AfricasTalkingSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.baseURL()).
		SetTimeout(timeout).
		SetHeader("apiKey", cfg.APIKey).
		SetHeader("Accept", "application/json")
	return &AfricasTalkingSender{client: client, cfg: cfg}
}

func (s *AfricasTalkingSender) Send(ctx context.Context, phone, text string) error {
	form := map[string]string{
		"username": s.cfg.Username,
		"to":       NormalizePhone(phone),
		"message":  text,
	}
	if from := s.cfg.sender(); from != "" {
		form["from"] = from
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(messagingPath)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post message: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var out messagingResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	for _, r := range out.SMSMessageData.Recipients {
		if r.Status == statusSuccess {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotDelivered, out.SMSMessageData.Message)
}
