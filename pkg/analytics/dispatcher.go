package analytics

import (
	"context"
	"fmt"

	"github.com/fitsnap/pipewatch/pkg/observability"
	"github.com/google/uuid"
)

// Dispatcher converts new alerts into notification records for the
// downstream delivery system. It never delivers anything itself: delivery is
// an external collaborator that flips Sent to true, and any retry or backoff
// logic belongs there.
type Dispatcher struct {
	notifications NotificationStore
	logger        *observability.Logger
	metrics       *observability.Metrics
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(notifications NotificationStore, logger *observability.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		logger:        logger,
		metrics:       metrics,
	}
}

// Dispatch creates exactly one notification record for the alert, with
// Sent=false.
func (d *Dispatcher) Dispatch(ctx context.Context, alert AlertRecord) (*NotificationRecord, error) {
	n := NotificationRecord{
		ID:            uuid.NewString(),
		AlertRuleName: alert.RuleName,
		Severity:      alert.Severity,
		Message:       alert.Message,
		CreatedAt:     alert.TriggeredAt,
		Window:        alert.Window,
		Sent:          false,
	}

	if err := d.notifications.InsertNotification(ctx, n); err != nil {
		if d.metrics != nil {
			d.metrics.NotificationsTotal.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("failed to write notification record: %w", err)
	}

	d.logger.WithFields(map[string]interface{}{
		"rule":         n.AlertRuleName,
		"severity":     string(n.Severity),
		"notification": n.ID,
	}).Info("notification enqueued")
	if d.metrics != nil {
		d.metrics.NotificationsTotal.WithLabelValues("ok").Inc()
	}

	return &n, nil
}
