package worker

import (
	"context"

	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/service"
)

// StartNotificationWorker registers notification handlers and starts
// delivery in the background. The returned channel closes once delivery
// has drained after ctx is cancelled.
func StartNotificationWorker(ctx context.Context, dispatcher *events.AsyncDispatcher, notificationService *service.NotificationService) <-chan struct{} {
	done := make(chan struct{})
	if dispatcher == nil || notificationService == nil {
		close(done)
		return done
	}
	notificationService.RegisterHandlers()
	go func() {
		defer close(done)
		dispatcher.Run(ctx)
	}()
	return done
}
