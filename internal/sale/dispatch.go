package sale

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/go-co-op/gocron"
)

// Deliverer hands a notification to an outside channel (email, SMS).
type Deliverer interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// LogDeliverer "delivers" notifications by logging them.
type LogDeliverer struct {
	Logger *slog.Logger
}

// Deliver implements Deliverer.
func (d LogDeliverer) Deliver(_ context.Context, n model.Notification) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification delivered",
		"ref", n.DeliveryRef, "customer", n.CustomerID, "email", n.CustomerEmail, "kind", n.Kind)
	return nil
}

const dispatchBatchSize = 100

// Dispatcher periodically drains the notification outbox into a Deliverer.
type Dispatcher struct {
	DB          *sql.DB
	Deliverer   Deliverer
	Interval    time.Duration
	MaxAttempts int
	Now         func() time.Time

	scheduler *gocron.Scheduler
}

// Start schedules Flush every Interval in the background.
func (d *Dispatcher) Start() error {
	d.scheduler = gocron.NewScheduler(time.UTC)
	d.scheduler.SingletonModeAll()

	_, err := d.scheduler.Every(d.Interval).Do(func() {
		sent, failed, err := d.Flush(context.Background())
		if err != nil {
			slog.Error("dispatching notifications", "error", err)
			return
		}
		if sent+failed > 0 {
			slog.Info("notifications dispatched", "sent", sent, "failed", failed)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling notification dispatch: %w", err)
	}

	d.scheduler.StartAsync()
	return nil
}

// Stop stops the schedule, waiting for a running flush to finish.
func (d *Dispatcher) Stop() {
	if d.scheduler != nil {
		d.scheduler.Stop()
	}
}

// Flush delivers every queued notification once. A failed delivery stays
// queued until MaxAttempts is reached.
func (d *Dispatcher) Flush(ctx context.Context) (sent, failed int, err error) {
	queued, err := store.ListQueuedNotifications(ctx, d.DB, dispatchBatchSize)
	if err != nil {
		return 0, 0, err
	}

	for _, n := range queued {
		if derr := d.Deliverer.Deliver(ctx, n); derr != nil {
			slog.Warn("notification delivery failed", "ref", n.DeliveryRef, "attempt", n.Attempts+1, "error", derr)
			if err := store.MarkNotificationAttemptFailed(ctx, d.DB, n.ID, derr.Error(), d.MaxAttempts); err != nil {
				return sent, failed, err
			}
			failed++
			continue
		}
		if err := store.MarkNotificationSent(ctx, d.DB, n.ID, d.now()); err != nil {
			return sent, failed, err
		}
		sent++
	}
	return sent, failed, nil
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}
