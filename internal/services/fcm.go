package services

import (
	"context"
	"encoding/base64"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMService handles Firebase Cloud Messaging
type FCMService struct {
	client *messaging.Client
}

// NewFCMService creates a new FCM service instance from a credentials file
func NewFCMService(credentialsFile string) (*FCMService, error) {
	return newFCMService(option.WithCredentialsFile(credentialsFile))
}

// NewFCMServiceFromBase64 creates a new FCM service instance from
// base64-encoded credentials, for cloud deployments where uploading a
// credentials file is awkward.
func NewFCMServiceFromBase64(credentialsBase64 string) (*FCMService, error) {
	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
	}
	return newFCMService(option.WithCredentialsJSON(credentialsJSON))
}

func newFCMService(opt option.ClientOption) (*FCMService, error) {
	ctx := context.Background()

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

// SendAlert pushes one notification to a registered dashboard device
func (s *FCMService) SendAlert(token, title, body string, data map[string]string) error {
	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	_, err := s.client.Send(context.Background(), message)
	if err != nil {
		return fmt.Errorf("error sending FCM message: %w", err)
	}
	return nil
}
