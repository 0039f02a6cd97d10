package domain

import (
	"context"
	"time"
)

// EventKind names something the engine did that other parts may care about.
type EventKind string

const (
	EventOrderAdmitted EventKind = "order_admitted"
	EventBuyFilled     EventKind = "buy_filled"
	EventFlipCompleted EventKind = "flip_completed"
	EventOrderExpired  EventKind = "order_expired"
	EventEngineStarted EventKind = "engine_started"
	EventEngineStopped EventKind = "engine_stopped"
)

// Event is emitted by the engine to every configured publisher.
type Event struct {
	Kind   EventKind `json:"kind"`
	Order  *Order    `json:"order,omitempty"`
	Profit float64   `json:"profit,omitempty"`
	At     time.Time `json:"at"`
}

// EventPublisher receives engine events. Implementations must not block for
// long; errors are logged by the caller and otherwise ignored.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev Event) error
}
