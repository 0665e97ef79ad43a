package notify

import (
	"context"

	"github.com/google/uuid"
)

// PushClient sends a push message to one device token.
type PushClient interface {
	SendPushNotification(ctx context.Context, token, title, body string, data map[string]string) (string, error)
}

// TokenRepository resolves users to their registered device tokens.
type TokenRepository interface {
	GetDeviceTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
	GetDisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}
