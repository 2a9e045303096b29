package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMSender sends push notifications via Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewFCMSender builds a messaging client from service-account fields.
func NewFCMSender(ctx context.Context, projectID, clientEmail, privateKey string, logger *slog.Logger) (*FCMSender, error) {
	creds, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   projectID,
		"client_email": clientEmail,
		"private_key":  privateKey,
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}

	return newFCMSender(ctx, projectID, logger, option.WithCredentialsJSON(creds))
}

func newFCMSender(ctx context.Context, projectID string, logger *slog.Logger, opts ...option.ClientOption) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return &FCMSender{client: client, logger: logger}, nil
}

// SendMulticast sends msg to tokens via SendEachForMulticast and classifies
// each per-token failure.
func (s *FCMSender) SendMulticast(ctx context.Context, tokens []string, msg Message) ([]SendResult, error) {
	resp, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: msg.Title,
				Body:  msg.Body,
				Icon:  msg.Icon,
			},
			FCMOptions: &messaging.WebpushFCMOptions{Link: msg.Link},
		},
	})
	if err != nil {
		return nil, err
	}

	results := make([]SendResult, len(resp.Responses))
	invalidArgs := 0
	for i, r := range resp.Responses {
		switch {
		case r.Success:
			results[i] = SendResult{Kind: Delivered}
		case messaging.IsUnregistered(r.Error):
			results[i] = SendResult{Kind: Unregistered, Err: r.Error}
		case messaging.IsInvalidArgument(r.Error):
			invalidArgs++
			if blamesToken(r.Error) {
				results[i] = SendResult{Kind: InvalidToken, Err: r.Error}
			} else {
				results[i] = SendResult{Kind: OtherFailure, Err: r.Error}
			}
		default:
			results[i] = SendResult{Kind: OtherFailure, Err: r.Error}
		}
	}

	// INVALID_ARGUMENT for every token of a multi-token batch points at the
	// payload, not the tokens.
	if len(tokens) > 1 && invalidArgs == len(tokens) {
		s.logger.Warn("Every token rejected with invalid argument, treating as payload error",
			"tokens", len(tokens), "error", resp.Responses[0].Error)
		for i := range results {
			results[i].Kind = OtherFailure
		}
	}
	return results, nil
}

// blamesToken reports whether an INVALID_ARGUMENT names the registration
// token rather than some other field of the message.
func blamesToken(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "registration token")
}
