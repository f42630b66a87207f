package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
	sqlrepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/sql"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
)

// EventService is the admin-facing surface: event setup, schedule
// changes, seat inventory and the pre-registration roster. Every
// schedule mutation re-arms the lifecycle timers.
type EventService interface {
	CreateEvent(ctx context.Context, input CreateEventInput) (*models.Event, error)
	UpdateEventSchedule(ctx context.Context, eventID string, input ScheduleInput) (*models.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
	AddSeats(ctx context.Context, eventID string, inputs []SeatInput) error
	RegisterUser(ctx context.Context, eventID, userID string) error
}

type CreateEventInput struct {
	Name     string
	Schedule ScheduleInput
}

type ScheduleInput struct {
	PreOpenAt     time.Time
	PreCloseAt    time.Time
	TicketOpenAt  time.Time
	TicketCloseAt time.Time
}

type SeatInput struct {
	Code  string
	Grade string
	Price decimal.Decimal
}

type eventService struct {
	eventRepo        sqlrepo.EventRepository
	seatRepo         sqlrepo.SeatRepository
	registrationRepo sqlrepo.RegistrationRepository
	scheduler        Scheduler
	l                logger.Logger
}

func NewEventService(
	eventRepo sqlrepo.EventRepository,
	seatRepo sqlrepo.SeatRepository,
	registrationRepo sqlrepo.RegistrationRepository,
	scheduler Scheduler,
	l logger.Logger,
) EventService {
	return &eventService{
		eventRepo:        eventRepo,
		seatRepo:         seatRepo,
		registrationRepo: registrationRepo,
		scheduler:        scheduler,
		l:                l,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, input CreateEventInput) (*models.Event, error) {
	if err := validateSchedule(input.Schedule); err != nil {
		return nil, err
	}

	now := time.Now()
	event := &models.Event{
		ID:            uuid.NewString(),
		Name:          input.Name,
		Status:        models.EventStatusReady,
		PreOpenAt:     input.Schedule.PreOpenAt,
		PreCloseAt:    input.Schedule.PreCloseAt,
		TicketOpenAt:  input.Schedule.TicketOpenAt,
		TicketCloseAt: input.Schedule.TicketCloseAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	if err := s.scheduler.NotifyEventSaved(ctx, event.ID); err != nil {
		s.l.Errorf(ctx, "eventService.CreateEvent: schedule timers: %v", err)
	}

	s.l.Infof(ctx, "Event %s created: tickets open %s",
		event.ID, event.TicketOpenAt.Format(time.RFC3339))

	return event, nil
}

func (s *eventService) UpdateEventSchedule(ctx context.Context, eventID string, input ScheduleInput) (*models.Event, error) {
	if err := validateSchedule(input); err != nil {
		return nil, err
	}

	event, err := s.eventRepo.Find(ctx, eventID)
	if err != nil {
		return nil, err
	}

	event.PreOpenAt = input.PreOpenAt
	event.PreCloseAt = input.PreCloseAt
	event.TicketOpenAt = input.TicketOpenAt
	event.TicketCloseAt = input.TicketCloseAt
	event.UpdatedAt = time.Now()

	if err := s.eventRepo.UpdateSchedule(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to update event schedule: %w", err)
	}

	if err := s.scheduler.NotifyEventSaved(ctx, eventID); err != nil {
		s.l.Errorf(ctx, "eventService.UpdateEventSchedule: reschedule timers: %v", err)
	}

	return event, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, eventID string) error {
	if err := s.eventRepo.Delete(ctx, eventID); err != nil {
		return err
	}

	s.scheduler.NotifyEventDeleted(ctx, eventID)

	return nil
}

func (s *eventService) AddSeats(ctx context.Context, eventID string, inputs []SeatInput) error {
	if _, err := s.eventRepo.Find(ctx, eventID); err != nil {
		return err
	}

	now := time.Now()
	seats := make([]*models.Seat, 0, len(inputs))
	for _, in := range inputs {
		seats = append(seats, &models.Seat{
			ID:        uuid.NewString(),
			EventID:   eventID,
			Code:      in.Code,
			Grade:     in.Grade,
			Price:     in.Price,
			Status:    models.SeatStatusAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.seatRepo.BulkCreate(ctx, seats); err != nil {
		return fmt.Errorf("failed to create seats: %w", err)
	}

	s.l.Infof(ctx, "Added %d seats to event %s", len(seats), eventID)

	return nil
}

func (s *eventService) RegisterUser(ctx context.Context, eventID, userID string) error {
	event, err := s.eventRepo.Find(ctx, eventID)
	if err != nil {
		return err
	}

	// Registration closes once the queue is built; late entrants
	// would otherwise never get a rank.
	if event.Status.Rank() >= models.EventStatusQueueReady.Rank() {
		return fmt.Errorf("registration closed for event %s", eventID)
	}

	if err := s.registrationRepo.Register(ctx, eventID, userID); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	return nil
}

func validateSchedule(in ScheduleInput) error {
	if !in.PreOpenAt.Before(in.PreCloseAt) {
		return fmt.Errorf("pre-open must precede pre-close")
	}
	if !in.PreCloseAt.Before(in.TicketOpenAt) {
		return fmt.Errorf("pre-close must precede ticket open")
	}
	if !in.TicketOpenAt.Before(in.TicketCloseAt) {
		return fmt.Errorf("ticket open must precede ticket close")
	}
	return nil
}
