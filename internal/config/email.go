package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
)

type EmailConfig struct {
	ServiceURL string
}

func NewEmailConfig() *EmailConfig {
	serviceURL := os.Getenv("EMAIL_SERVICE_URL")
	if serviceURL == "" {
		log.Fatal("Missing Environment variable EMAIL_SERVICE_URL")
	}
	return &EmailConfig{ServiceURL: serviceURL}
}

// EmailRequest is the payload accepted by the email service.
type EmailRequest struct {
	UserID  string `json:"userId"`
	Subject string `json:"subject"`
	Type    string `json:"type"`
	Content any    `json:"content"`
}

type EmailService struct {
	Config *EmailConfig
	client *http.Client
}

func NewEmailService(lc fx.Lifecycle, config *EmailConfig) *EmailService {
	service := &EmailService{
		Config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Println("Email Service initialized")
			return nil
		},
	})
	return service
}

// SendEmail posts a send request to the email service. Callers treat delivery
// as best-effort; the notification record is the durable source of truth.
func (e *EmailService) SendEmail(ctx context.Context, userID, subject, emailType string, content any) error {
	payload := EmailRequest{
		UserID:  userID,
		Subject: subject,
		Type:    emailType,
		Content: content,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("Failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Config.ServiceURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("Failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("Failed to send Email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorResponse map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errorResponse)
		return fmt.Errorf("Failed to send email, status code: %d, error: %v", resp.StatusCode, errorResponse)
	}

	log.Println("Email sent successfully for user", userID)
	return nil
}
