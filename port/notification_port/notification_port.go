package notification_port

import (
	"context"

	"pkgdeploy-cli/domain"
)

// NotificationPort emits terminal transaction transitions to an outbound
// sink. Delivery is at-least-once attempted; failures are logged, never
// propagated into transaction status.
type NotificationPort interface {
	NotifyTerminal(ctx context.Context, payload *domain.NotificationPayload) error
}
