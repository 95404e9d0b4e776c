// Package notify delivers operator alerts for selected protocol logs to chat
// channels and webhooks. Every sender receives every message that passes the
// log name filter.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Message is one alert. Event is the log name it was raised for.
type Message struct {
	Event  string            `json:"event"`
	Seq    int64             `json:"seq"`
	TxID   string            `json:"tx_id"`
	Title  string            `json:"title"`
	Fields map[string]string `json:"fields"`
}

// Text renders the fields as sorted "key: value" lines.
func (m Message) Text() string {
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, m.Fields[k])
	}
	fmt.Fprintf(&b, "seq: %d", m.Seq)
	return b.String()
}

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Pacer blocks until key may send again.
type Pacer interface {
	Wait(ctx context.Context, key string) error
}

// Notifier fans messages out to its senders.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	pacer   Pacer
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. Only messages whose Event is listed in
// events are delivered; an empty list delivers everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// WithPacer paces every sender through p, keyed "notify:<sender>".
func (n *Notifier) WithPacer(p Pacer) *Notifier {
	n.pacer = p
	return n
}

// Wants reports whether messages for event pass the filter.
func (n *Notifier) Wants(event string) bool {
	return len(n.senders) > 0 && (len(n.events) == 0 || n.events[event])
}

// Notify delivers msg if its event passes the filter. A failing sender does
// not stop delivery to the others; all failures are returned together.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	if !n.Wants(msg.Event) {
		return nil
	}
	var errs []string
	for _, s := range n.senders {
		if n.pacer != nil {
			if err := n.pacer.Wait(ctx, "notify:"+s.Name()); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
				continue
			}
		}
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", msg.Event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", msg.Event),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
