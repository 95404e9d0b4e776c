package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alanyoungcy/tiqet/internal/chain"
	"github.com/alanyoungcy/tiqet/internal/domain"
	"github.com/alanyoungcy/tiqet/internal/notify"
)

// Alerts turns selected logs into operator notifications.
type Alerts struct {
	notifier *notify.Notifier
}

// NewAlerts creates an Alerts sink.
func NewAlerts(n *notify.Notifier) *Alerts {
	return &Alerts{notifier: n}
}

// Name implements chain.Sink.
func (a *Alerts) Name() string { return "alerts" }

// Handle implements chain.Sink.
func (a *Alerts) Handle(ctx context.Context, r domain.Receipt) error {
	var errs []error
	for _, l := range r.Logs {
		if !a.notifier.Wants(l.Name) {
			continue
		}
		if err := a.notifier.Notify(ctx, alertFor(r, l)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("alerts: seq %d: %w", r.Seq, err)
	}
	return nil
}

func alertFor(r domain.Receipt, l domain.Log) notify.Message {
	fields := make(map[string]string, len(l.Attrs))
	for _, a := range l.Attrs {
		fields[a.Key] = a.Value
	}
	return notify.Message{
		Event:  l.Name,
		Seq:    r.Seq,
		TxID:   r.TxID,
		Title:  alertTitle(l),
		Fields: fields,
	}
}

func alertTitle(l domain.Log) string {
	switch l.Name {
	case domain.LogEventResolved:
		return fmt.Sprintf("Event %s resolved, option %s wins", l.Get("event_id"), l.Get("winner"))
	case domain.LogEventDisqualified:
		return fmt.Sprintf("Event %s disqualified", l.Get("event_id"))
	case domain.LogTreasuryWithdrawn:
		return fmt.Sprintf("Treasury withdrawal of %s", l.Get("amount"))
	case domain.LogTreasuryFeesWithdrawn:
		return fmt.Sprintf("Fee withdrawal of %s", l.Get("amount"))
	case domain.LogOwnershipTransferred:
		return "Ownership transferred"
	}
	if id, ok := l.EventID(); ok {
		return fmt.Sprintf("%s on event %d", splitCamel(l.Name), id)
	}
	return splitCamel(l.Name)
}

// splitCamel turns "WagerPlaced" into "Wager placed".
func splitCamel(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ chain.Sink = (*Alerts)(nil)
