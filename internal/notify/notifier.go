// Package notify forwards selected engine events to chat webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

// Sender delivers one rendered notification to a channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// defaultQueueSize bounds events waiting for delivery.
const defaultQueueSize = 64

// ErrQueueFull is returned by PublishEvent when an event had to be dropped.
var ErrQueueFull = errors.New("notify: queue full")

// Notifier renders engine events and fans them out to every Sender. Only
// kinds in the allow set are delivered; an empty set allows every kind.
// PublishEvent only queues; Run performs delivery.
type Notifier struct {
	senders []Sender
	kinds   map[domain.EventKind]bool
	queue   chan domain.Event
	logger  *slog.Logger
}

// NewNotifier builds a Notifier. events holds event kind names such as
// "flip_completed".
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	kinds := make(map[domain.EventKind]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			kinds[domain.EventKind(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		kinds:   kinds,
		queue:   make(chan domain.Event, defaultQueueSize),
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Allows reports whether events of kind are delivered.
func (n *Notifier) Allows(kind domain.EventKind) bool {
	return len(n.kinds) == 0 || n.kinds[kind]
}

// PublishEvent implements domain.EventPublisher. It never blocks; events are
// dropped with ErrQueueFull when the queue is full.
func (n *Notifier) PublishEvent(ctx context.Context, ev domain.Event) error {
	if !n.Allows(ev.Kind) {
		return nil
	}
	select {
	case n.queue <- ev:
		return nil
	default:
		n.logger.WarnContext(ctx, "notification queue full, dropping event",
			slog.String("kind", string(ev.Kind)),
		)
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	n.logger.InfoContext(ctx, "notifier started", slog.Int("senders", len(n.senders)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-n.queue:
			// Failures are logged per sender in dispatch.
			_ = n.Deliver(ctx, ev)
		}
	}
}

// Deliver renders ev and sends it to every sender synchronously.
func (n *Notifier) Deliver(ctx context.Context, ev domain.Event) error {
	title, message := Render(ev)
	return n.dispatch(ctx, title, message)
}

// dispatch sends to every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Render turns an event into a title and a message body.
func Render(ev domain.Event) (string, string) {
	o := ev.Order
	switch ev.Kind {
	case domain.EventFlipCompleted:
		if o != nil {
			return "Flip completed", fmt.Sprintf("%s x%d sold at %s, profit %s",
				o.InstrumentID, o.Quantity, formatCoins(o.SellPrice), formatCoins(ev.Profit))
		}
		return "Flip completed", "profit " + formatCoins(ev.Profit)
	case domain.EventOrderAdmitted:
		if o != nil {
			return "Order placed", fmt.Sprintf("%s x%d buy %s sell %s (%.2f%%)",
				o.InstrumentID, o.Quantity, formatCoins(o.BuyPrice), formatCoins(o.SellPrice), o.ProfitPercent)
		}
	case domain.EventBuyFilled:
		if o != nil {
			return "Buy filled", fmt.Sprintf("%s x%d, listing at %s",
				o.InstrumentID, o.Quantity, formatCoins(o.SellPrice))
		}
	case domain.EventOrderExpired:
		if o != nil {
			return "Order expired", fmt.Sprintf("%s x%d timed out while %s",
				o.InstrumentID, o.Quantity, o.State)
		}
	case domain.EventEngineStarted:
		return "Engine started", "scanning resumed"
	case domain.EventEngineStopped:
		return "Engine stopped", "scanning halted"
	}
	return string(ev.Kind), ""
}

func formatCoins(v float64) string {
	switch {
	case v >= 1e6 || v <= -1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3 || v <= -1e3:
		return fmt.Sprintf("%.1fk", v/1e3)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}

var _ domain.EventPublisher = (*Notifier)(nil)
