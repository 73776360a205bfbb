package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/jojo6550/jefitness-sub002/internal/models"
)

// WebhookAlerter posts critical audit events to a configured URL.
type WebhookAlerter struct {
	url    string
	client *http.Client
}

func NewWebhookAlerter(url string) *WebhookAlerter {
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (a *WebhookAlerter) Name() string { return "webhook" }

func (a *WebhookAlerter) Notify(ctx context.Context, event *models.AuditEvent) error {
	payload, err := json.Marshal(map[string]any{
		"timestamp": event.Timestamp.Format(time.RFC3339),
		"level":     event.Level,
		"category":  event.Category,
		"eventType": event.EventType,
		"message":   event.Message,
		"userId":    event.UserID,
		"metadata":  event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to encode alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert webhook unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook answered %d", resp.StatusCode)
	}
	return nil
}

// SESAlerter mails critical audit events to the security distribution list
// using AWS SES.
type SESAlerter struct {
	sesClient   *ses.Client
	fromAddress string
	toAddresses []string
	logger      *slog.Logger
}

func NewSESAlerter(region, fromAddress string, toAddresses []string, logger *slog.Logger) (*SESAlerter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESAlerter{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		toAddresses: toAddresses,
		logger:      logger,
	}, nil
}

func (a *SESAlerter) Name() string { return "ses" }

func (a *SESAlerter) Notify(ctx context.Context, event *models.AuditEvent) error {
	subject := fmt.Sprintf("[security] %s", event.EventType)

	var body strings.Builder
	fmt.Fprintf(&body, "Security event: %s\n", event.EventType)
	fmt.Fprintf(&body, "Time: %s\n", event.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&body, "Level: %s\nCategory: %s\n", event.Level, event.Category)
	if event.Message != "" {
		fmt.Fprintf(&body, "Message: %s\n", event.Message)
	}
	if event.UserID != "" {
		fmt.Fprintf(&body, "User: %s\n", event.UserID)
	}
	if event.IP != "" {
		fmt.Fprintf(&body, "IP: %s\n", event.IP)
	}
	for key, val := range event.Metadata {
		fmt.Fprintf(&body, "%s: %v\n", key, val)
	}

	_, err := a.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(a.fromAddress),
		Destination: &types.Destination{
			ToAddresses: a.toAddresses,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body.String())},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	a.logger.Info("security alert mailed",
		slog.String("event_type", event.EventType),
		slog.Int("recipients", len(a.toAddresses)))
	return nil
}
