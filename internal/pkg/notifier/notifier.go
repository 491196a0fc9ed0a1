// Package notifier publishes ledger events for downstream consumers
// (email, push, admin dashboards). Dispatch is best-effort: it runs only
// after the ledger transaction has committed, and a publish failure is
// logged and dropped, never propagated back to the caller.
package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 2 * time.Second

// Event types published on the ledger channel.
const (
	EventGiftCardIssued      = "giftcard.issued"
	EventGiftCardRedeemed    = "giftcard.redeemed"
	EventGiftCardExpired     = "giftcard.expired"
	EventGiftCardCancelled   = "giftcard.cancelled"
	EventApplicationRejected = "application.rejected"
	EventWalletCredited      = "wallet.credited"
	EventRefundBankPending   = "refund.bank_pending"
)

// Event is the wire shape published to Redis.
type Event struct {
	Type      string            `json:"type"`
	UserID    uuid.UUID         `json:"user_id"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Notifier publishes events to a Redis channel. A nil client disables it.
type Notifier struct {
	client  *redis.Client
	channel string
}

func New(client *redis.Client, channel string) *Notifier {
	return &Notifier{client: client, channel: channel}
}

// Publish sends an event, swallowing any failure.
func (n *Notifier) Publish(ctx context.Context, eventType string, userID uuid.UUID, fields map[string]string) {
	if n == nil || n.client == nil {
		return
	}

	evt := Event{
		Type:      eventType,
		UserID:    userID,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("Failed to marshal ledger event")
		return
	}

	// Detach from the request context so a cancelled request does not lose
	// a post-commit event.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := n.client.Publish(pubCtx, n.channel, payload).Err(); err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("Failed to publish ledger event")
	}
}
