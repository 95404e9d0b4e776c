package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alanyoungcy/tiqet/internal/chain"
	"github.com/alanyoungcy/tiqet/internal/domain"
)

// Publisher puts committed receipts on the signal bus: the whole receipt on
// the durable stream, each log on the live channels.
type Publisher struct {
	bus domain.SignalBus
}

// NewPublisher creates a Publisher.
func NewPublisher(bus domain.SignalBus) *Publisher {
	return &Publisher{bus: bus}
}

// Name implements chain.Sink.
func (p *Publisher) Name() string { return "publisher" }

// Handle implements chain.Sink.
func (p *Publisher) Handle(ctx context.Context, r domain.Receipt) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("publisher: marshal receipt %d: %w", r.Seq, err)
	}
	if err := p.bus.StreamAppend(ctx, domain.ReceiptStream, body); err != nil {
		return fmt.Errorf("publisher: %w", err)
	}

	var errs []error
	for _, msg := range domain.LogMessages(r) {
		payload, err := json.Marshal(msg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.bus.Publish(ctx, domain.LogsChannel, payload); err != nil {
			errs = append(errs, err)
		}
		if id, ok := msg.Log.EventID(); ok {
			if err := p.bus.Publish(ctx, domain.EventLogsChannel(id), payload); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("publisher: seq %d: %w", r.Seq, err)
	}
	return nil
}

var _ chain.Sink = (*Publisher)(nil)
