package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"kantin-reconciler/internal/reconcile"
)

// Publisher pushes run summaries onto a Redis stream so downstream
// consumers (dashboards, alerting) can pick them up. The stream is a
// reporting channel only; the engine keeps no state of its own.
type Publisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

func NewPublisher(client *redis.Client, stream string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, stream: stream, logger: logger}
}

// Publish appends one summary to the stream and returns the message id.
func (p *Publisher) Publish(ctx context.Context, sum *reconcile.Summary) (string, error) {
	values, err := streamValues(sum)
	if err != nil {
		return "", err
	}
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish run summary: %w", err)
	}
	p.logger.Info("run summary published",
		zap.String("stream", p.stream),
		zap.String("message_id", id))
	return id, nil
}

// streamValues flattens the headline counters next to the full JSON payload
// so consumers can filter without decoding.
func streamValues(sum *reconcile.Summary) (map[string]interface{}, error) {
	payload, err := json.Marshal(sum)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run summary: %w", err)
	}
	return map[string]interface{}{
		"outcome":    string(sum.Outcome),
		"started_at": sum.StartTime.Unix(),
		"deleted":    sum.Deleted,
		"errors":     sum.Errors,
		"data":       string(payload),
	}, nil
}
