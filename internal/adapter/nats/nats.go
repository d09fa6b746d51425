// Package nats publishes performance alerts to NATS JetStream and provisions
// the bucket behind the shared result cache.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/quorumgate/internal/port/notifier"
)

const streamName = "QUORUMGATE_ALERTS"

// AlertPublisher implements notifier.Notifier on a JetStream stream. Each
// notification lands on <prefix>.<level>.
type AlertPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
}

// Connect establishes a connection to NATS and ensures the alert stream exists.
func Connect(ctx context.Context, url, prefix string) (*AlertPublisher, error) {
	if url == "" {
		return nil, notifier.ErrNotConfigured
	}
	nc, err := nats.Connect(url, nats.Name("quorumgate"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{prefix + ".>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName, "prefix", prefix)
	return &AlertPublisher{nc: nc, js: js, prefix: prefix}, nil
}

// Name implements notifier.Notifier.
func (p *AlertPublisher) Name() string { return "nats" }

// Send implements notifier.Notifier.
func (p *AlertPublisher) Send(ctx context.Context, n notifier.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("nats marshal alert: %w", err)
	}
	subject := Subject(p.prefix, n.Level)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// ResultBucket creates or updates the key-value bucket that backs the shared
// validation result cache. Entries expire after ttl.
func (p *AlertPublisher) ResultBucket(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := p.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "quorumgate validation results",
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("jetstream kv %s: %w", bucket, err)
	}
	return kv, nil
}

// Close drains and shuts down the NATS connection.
func (p *AlertPublisher) Close() error {
	return p.nc.Drain()
}

// Subject returns the subject for a notification level.
func Subject(prefix, level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	return prefix + "." + level
}
