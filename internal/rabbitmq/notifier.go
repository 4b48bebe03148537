package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"carpool/internal/service"
)

// Routing keys per notification type.
const (
	RoutingKeyCancelled = "carpool.cancelled"
	RoutingKeyCompleted = "carpool.completed"
)

// Publisher sends a message body to an exchange.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// Notifier publishes passenger notifications as JSON events.
type Notifier struct {
	publisher Publisher
	exchange  string
}

// NewNotifier creates a new Notifier publishing to exchange.
func NewNotifier(publisher Publisher, exchange string) *Notifier {
	return &Notifier{publisher: publisher, exchange: exchange}
}

// NotifyCancellation publishes a carpool cancellation notice.
func (n *Notifier) NotifyCancellation(ctx context.Context, email, name, tripSummary string) error {
	return n.publish(ctx, RoutingKeyCancelled, service.NewCancellationNotification(email, name, tripSummary))
}

// NotifyCompletion publishes a trip validation request.
func (n *Notifier) NotifyCompletion(ctx context.Context, email, name, carpoolID string) error {
	return n.publish(ctx, RoutingKeyCompleted, service.NewCompletionNotification(email, name, carpoolID))
}

func (n *Notifier) publish(ctx context.Context, routingKey string, notification service.Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := n.publisher.Publish(ctx, n.exchange, routingKey, body); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// Ensure Notifier implements service.Notifier.
var _ service.Notifier = (*Notifier)(nil)
