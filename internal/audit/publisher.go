package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is the append-only persistence contract for the audit trail.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByInstitution(ctx context.Context, institutionID string) ([]Event, error)
}

// Publisher hands audit events to the background worker. Emit never blocks
// domain logic: when the inbox is full the event is dropped and logged.
type Publisher struct {
	inbox  chan<- Event
	logger *slog.Logger
}

func NewPublisher(inbox chan<- Event, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{inbox: inbox, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, dropping event",
			slog.String("action", event.Action),
			slog.String("institution", event.Institution),
		)
	}
}
