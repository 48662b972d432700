package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// EmailJSClient sends templated mail through an EmailJS-compatible REST endpoint.
type EmailJSClient struct {
	endpoint    string
	serviceID   string
	userID      string
	accessToken string
	templates   map[Template]string
	httpClient  *http.Client
}

type EmailJSConfig struct {
	Endpoint           string
	ServiceID          string
	UserID             string
	AccessToken        string
	BusinessTemplateID string
	CustomerTemplateID string
}

func NewEmailJSClient(cfg EmailJSConfig, httpClient *http.Client) *EmailJSClient {
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &EmailJSClient{
		endpoint:    cfg.Endpoint,
		serviceID:   cfg.ServiceID,
		userID:      cfg.UserID,
		accessToken: cfg.AccessToken,
		templates: map[Template]string{
			BusinessNotification: cfg.BusinessTemplateID,
			CustomerConfirmation: cfg.CustomerTemplateID,
		},
		httpClient: httpClient,
	}
}

type sendRequest struct {
	ServiceID      string `json:"service_id"`
	TemplateID     string `json:"template_id"`
	UserID         string `json:"user_id"`
	AccessToken    string `json:"accessToken,omitempty"`
	TemplateParams Params `json:"template_params"`
}

func (c *EmailJSClient) Send(ctx context.Context, template Template, params Params) error {
	templateID, ok := c.templates[template]
	if !ok || templateID == "" {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, template)
	}
	if params["to_email"] == "" {
		return ErrNoRecipient
	}

	body, err := json.Marshal(sendRequest{
		ServiceID:      c.serviceID,
		TemplateID:     templateID,
		UserID:         c.userID,
		AccessToken:    c.accessToken,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email provider returned %d for %s: %s", resp.StatusCode, template, bytes.TrimSpace(msg))
	}
	return nil
}
