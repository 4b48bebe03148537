package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationCarpoolCancelled NotificationType = "CARPOOL_CANCELLED"
	NotificationCarpoolCompleted NotificationType = "CARPOOL_COMPLETED"
)

// Notification is a message addressed to one passenger.
type Notification struct {
	Type      NotificationType `json:"type"`
	Email     string           `json:"email"`
	Name      string           `json:"name"`
	Subject   string           `json:"subject"`
	Message   string           `json:"message"`
	CarpoolID string           `json:"carpool_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewCancellationNotification builds the message sent when a driver cancels a carpool.
func NewCancellationNotification(email, name, tripSummary string) Notification {
	return Notification{
		Type:      NotificationCarpoolCancelled,
		Email:     email,
		Name:      name,
		Subject:   "Carpool cancelled",
		Message:   fmt.Sprintf("Hello %s, your carpool %s was cancelled by the driver. Your credits have been refunded.", name, tripSummary),
		CreatedAt: time.Now(),
	}
}

// NewCompletionNotification builds the message sent when a carpool completes.
func NewCompletionNotification(email, name, carpoolID string) Notification {
	return Notification{
		Type:      NotificationCarpoolCompleted,
		Email:     email,
		Name:      name,
		Subject:   "How was your trip?",
		Message:   fmt.Sprintf("Hello %s, your carpool has arrived. Please validate the trip or report a problem.", name),
		CarpoolID: carpoolID,
		CreatedAt: time.Now(),
	}
}

// Notifier delivers passenger notifications. Delivery is best effort.
type Notifier interface {
	NotifyCancellation(ctx context.Context, email, name, tripSummary string) error
	NotifyCompletion(ctx context.Context, email, name, carpoolID string) error
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyCancellation logs a cancellation notification.
func (n *LogNotifier) NotifyCancellation(ctx context.Context, email, name, tripSummary string) error {
	n.send(NewCancellationNotification(email, name, tripSummary))
	return nil
}

// NotifyCompletion logs a completion notification.
func (n *LogNotifier) NotifyCompletion(ctx context.Context, email, name, carpoolID string) error {
	n.send(NewCompletionNotification(email, name, carpoolID))
	return nil
}

func (n *LogNotifier) send(notification Notification) {
	n.logger.Info("Notification",
		zap.String("type", string(notification.Type)),
		zap.String("email", notification.Email),
		zap.String("subject", notification.Subject),
		zap.String("message", notification.Message),
	)
}

// notice is a notification queued by an operation until its transaction commits.
type notice struct {
	kind        NotificationType
	email       string
	name        string
	tripSummary string
	carpoolID   string
}

const notificationTimeout = 10 * time.Second

// dispatcher sends notices in the background after a mutation commits.
// Failures are logged and never retried.
type dispatcher struct {
	notifier Notifier
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func (d *dispatcher) dispatch(ctx context.Context, notices []notice) {
	if d.notifier == nil || len(notices) == 0 {
		return
	}

	// The request context ends with the response; delivery must outlive it.
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for _, n := range notices {
			d.send(ctx, n)
		}
	}()
}

func (d *dispatcher) send(ctx context.Context, n notice) {
	ctx, cancel := context.WithTimeout(ctx, notificationTimeout)
	defer cancel()

	var err error
	switch n.kind {
	case NotificationCarpoolCancelled:
		err = d.notifier.NotifyCancellation(ctx, n.email, n.name, n.tripSummary)
	case NotificationCarpoolCompleted:
		err = d.notifier.NotifyCompletion(ctx, n.email, n.name, n.carpoolID)
	}

	if err != nil {
		d.logger.Warn("Notification delivery failed",
			zap.String("type", string(n.kind)),
			zap.String("email", n.email),
			zap.String("carpool_id", n.carpoolID),
			zap.Error(err),
		)
	}
}

func (d *dispatcher) wait() {
	d.wg.Wait()
}
