package service

import (
	"context"
	"encoding/json"
	"fmt"

	"anoa.com/alumnidirectory/internal/entity"
	"anoa.com/alumnidirectory/internal/modules/notification/dto"
	"anoa.com/alumnidirectory/pkg/mailer"
	"anoa.com/alumnidirectory/pkg/queue"
)

// Dispatcher delivers the welcome notification for a newly approved alumnus.
type Dispatcher interface {
	DispatchWelcome(ctx context.Context, event dto.WelcomeEmailEvent) error
}

// NewWelcomeEvent builds the event for an approved profile.
func NewWelcomeEvent(profile *entity.AlumniProfile) dto.WelcomeEmailEvent {
	event := dto.WelcomeEmailEvent{
		Email:      profile.Email,
		FullName:   profile.FullName,
		BatchStart: profile.BatchStart,
		BatchEnd:   profile.BatchEnd,
	}
	if profile.ApprovedBy != nil {
		event.ApprovedBy = *profile.ApprovedBy
	}
	if profile.ApprovedAt != nil {
		event.ApprovedAt = *profile.ApprovedAt
	}
	return event
}

type queueDispatcher struct {
	publisher queue.Publisher
}

// NewQueueDispatcher hands welcome emails to the mailer worker through Kafka.
func NewQueueDispatcher(publisher queue.Publisher) Dispatcher {
	return &queueDispatcher{publisher: publisher}
}

func (d *queueDispatcher) DispatchWelcome(ctx context.Context, event dto.WelcomeEmailEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := d.publisher.Publish(ctx, []byte(event.Email), payload); err != nil {
		return fmt.Errorf("publish welcome event: %w", err)
	}
	return nil
}

type mailDispatcher struct {
	mailer       mailer.Mailer
	directoryURL string
}

// NewMailDispatcher sends welcome emails inline over SMTP.
func NewMailDispatcher(m mailer.Mailer, directoryURL string) Dispatcher {
	return &mailDispatcher{mailer: m, directoryURL: directoryURL}
}

func (d *mailDispatcher) DispatchWelcome(ctx context.Context, event dto.WelcomeEmailEvent) error {
	batch := entity.BatchRange{Start: event.BatchStart, End: event.BatchEnd}
	return d.mailer.SendWelcome(event.Email, event.FullName, batch.String(), d.directoryURL)
}

type welcomeEmailHandler struct {
	dispatcher Dispatcher
}

// NewWelcomeEmailHandler consumes welcome events from the queue and mails them.
func NewWelcomeEmailHandler(m mailer.Mailer, directoryURL string) queue.Handler {
	return &welcomeEmailHandler{dispatcher: NewMailDispatcher(m, directoryURL)}
}

func (h *welcomeEmailHandler) HandleMessage(ctx context.Context, value []byte) error {
	var event dto.WelcomeEmailEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("decode welcome event: %w", err)
	}
	if event.Email == "" {
		return fmt.Errorf("welcome event without email")
	}
	return h.dispatcher.DispatchWelcome(ctx, event)
}
