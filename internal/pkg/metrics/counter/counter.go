package counter

import (
	"context"
	"strconv"

	"github.com/subgate-io/subgate/internal/pkg/cache"
)

const webhookOutcomesKey = "billing:counters:webhook_outcomes"

// Webhook delivery outcomes tracked in Redis. Counters are best-effort
// operational data; a Redis outage never affects event processing.
const (
	OutcomeAcknowledged = "acknowledged"
	OutcomeRejected     = "rejected"
	OutcomeFailed       = "failed"
)

// AddWebhookOutcome increments the counter for one delivery outcome.
func AddWebhookOutcome(outcome string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookOutcomesKey, outcome, 1).Err()
}

// WebhookOutcomes returns the accumulated per-outcome delivery counts.
func WebhookOutcomes(ctx context.Context) (map[string]int64, error) {
	data, err := cache.GetClient().HGetAll(ctx, webhookOutcomesKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for field, value := range data {
		n, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			continue
		}
		out[field] = n
	}
	return out, nil
}
