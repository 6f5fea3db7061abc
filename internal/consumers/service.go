package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/stan.go"

	"nightpass/internal/messaging"
	"nightpass/internal/models"
)

// queueGroup lets several notifier replicas share the work.
const queueGroup = "notifier"

type ConsumerService struct {
	nats     *messaging.NATSClient
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(nats *messaging.NATSClient, handlers *Handlers) *ConsumerService {
	return &ConsumerService{nats: nats, handlers: handlers}
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	routes := []struct {
		subject string
		handler stan.MsgHandler
	}{
		{models.EventReservationCreated, cs.handlers.HandleReservationCreated},
		{models.EventReservationStatusChanged, cs.handlers.HandleReservationStatusChanged},
		{models.EventTicketsIssued, cs.handlers.HandleTicketsIssued},
		{models.EventPaymentFailed, cs.handlers.HandlePaymentFailed},
	}
	for _, r := range routes {
		sub, err := cs.nats.SubscribeQueue(r.subject, queueGroup, r.handler)
		if err != nil {
			return fmt.Errorf("failed to start consumer for %s: %w", r.subject, err)
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully", "count", len(cs.subs))
	return nil
}

// Shutdown closes the subscriptions; durable positions stay on the server.
func (cs *ConsumerService) Shutdown(_ context.Context) error {
	slog.Info("Shutting down consumer service...")

	var firstErr error
	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	cs.subs = nil
	return firstErr
}
