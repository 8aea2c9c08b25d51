package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const brevoSendPath = "/smtp/email"

type brevoSendRequest struct {
	TemplateID int64          `json:"templateId"`
	To         []Recipient    `json:"to"`
	Params     map[string]any `json:"params,omitempty"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}

// brevoAPIError is the error body returned by the Brevo API.
type brevoAPIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *brevoAPIError) Error() string {
	if e.Code == "" && e.Message == "" {
		return "no error details"
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// BrevoClient sends template emails through the Brevo transactional API.
type BrevoClient struct {
	httpClient *resty.Client
}

// NewBrevoClient returns a client for baseURL authenticated with apiKey.
func NewBrevoClient(baseURL, apiKey string, timeout time.Duration) *BrevoClient {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeaders(map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
			"api-key":      apiKey,
		})
	return &BrevoClient{httpClient: httpClient}
}

// Send posts msg once. Non-2xx responses yield ErrDeliveryFailed.
func (c *BrevoClient) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To.Email) == "" {
		return fmt.Errorf("%w: recipient email is required", ErrDeliveryFailed)
	}

	result := &brevoSendResponse{}
	apiErr := &brevoAPIError{}

	response, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(brevoSendRequest{
			TemplateID: msg.TemplateID,
			To:         []Recipient{msg.To},
			Params:     msg.Params,
		}).
		SetResult(result).
		SetError(apiErr).
		Post(brevoSendPath)
	if err != nil {
		var netError net.Error
		if errors.As(err, &netError) {
			return fmt.Errorf("brevo is unreachable: %w", netError)
		}
		return fmt.Errorf("failed to send request to brevo: %w", err)
	}

	if response.IsError() || response.StatusCode() < 200 || response.StatusCode() >= 300 {
		return fmt.Errorf("%w: brevo returned status %d: %s", ErrDeliveryFailed, response.StatusCode(), apiErr.Error())
	}
	return nil
}
