// Package notifier defines the port through which performance alerts leave the process.
package notifier

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Notification is the payload sent through a Notifier.
type Notification struct {
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Level     string         `json:"level"`  // "info", "warning", "critical"
	Source    string         `json:"source"` // e.g. "performance.max_validation_time"
	RunID     string         `json:"run_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier is the port interface for sending notifications.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "nats").
	Name() string

	// Send delivers a notification.
	Send(ctx context.Context, n Notification) error
}

// Fanout delivers each notification to every member and joins their errors.
type Fanout []Notifier

// Name implements Notifier.
func (Fanout) Name() string { return "fanout" }

// Send implements Notifier.
func (f Fanout) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, member := range f {
		if err := member.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
