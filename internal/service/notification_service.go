package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/events"
)

// NotificationSink delivers an event to the notification collaborator.
// Implementations must tolerate redelivery of the same event id.
type NotificationSink interface {
	Deliver(ctx context.Context, event events.Event) error
}

// LogSink writes events to the log only; used when no broker is configured.
type LogSink struct {
	Logger *zap.Logger
}

// Deliver logs the event.
func (l LogSink) Deliver(_ context.Context, event events.Event) error {
	l.Logger.Info("notification",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}

// NotificationService forwards committed domain events to the sink.
type NotificationService struct {
	dispatcher events.Dispatcher
	sink       NotificationSink
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, sink NotificationSink, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = LogSink{Logger: logger}
	}
	return &NotificationService{
		dispatcher: dispatcher,
		sink:       sink,
		logger:     logger,
	}
}

// NotifiedEvents lists the event types forwarded to the sink.
var NotifiedEvents = []events.EventType{
	events.EventTicketCreated,
	events.EventTicketStatusChanged,
	events.EventTicketAssigned,
	events.EventTicketEscalated,
	events.EventTicketResolved,
	events.EventTicketReopened,
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range NotifiedEvents {
		n.dispatcher.Subscribe(eventType, n.forward)
	}
}

func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	n.logger.Debug("forwarding event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
	return n.sink.Deliver(ctx, event)
}
