package usecase

import (
	"context"
	"log/slog"
	"time"

	bookingDomain "github.com/pdh/booking/internal/booking/domain"
	"github.com/pdh/booking/internal/database"
	apperrors "github.com/pdh/booking/internal/errors"
	outboxDomain "github.com/pdh/booking/internal/outbox/domain"
	"github.com/pdh/booking/internal/saga/domain"
)

// Config holds orchestrator configuration.
type Config struct {
	SagaCommandTopic    string
	PaymentCommandTopic string
	BookingEventsTopic  string
}

// Orchestrator drives booking sagas: it advances the state machine on domain
// events, issues participant commands through the outbox and runs the
// compensation chain on failures. Every transition, its audit log entry and
// the follow-up command are persisted in one transaction.
type Orchestrator struct {
	config       Config
	txManager    database.TxManager
	sagaRepo     InstanceRepository
	stateLogRepo StateLogRepository
	bookingRepo  BookingRepository
	outboxWriter OutboxWriter
	metrics      Metrics
	logger       *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	config Config,
	txManager database.TxManager,
	sagaRepo InstanceRepository,
	stateLogRepo StateLogRepository,
	bookingRepo BookingRepository,
	outboxWriter OutboxWriter,
	metrics Metrics,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:       config,
		txManager:    txManager,
		sagaRepo:     sagaRepo,
		stateLogRepo: stateLogRepo,
		bookingRepo:  bookingRepo,
		outboxWriter: outboxWriter,
		metrics:      metrics,
		logger:       logger,
	}
}

// StartSaga creates the saga instance for a booking and issues the first
// reservation command. It must run inside the same transaction that inserts
// the booking so the saga never exists without its booking or vice versa.
func (o *Orchestrator) StartSaga(ctx context.Context, booking *bookingDomain.Booking) (*domain.Instance, error) {
	saga := domain.NewInstance(booking.ID)
	if err := o.sagaRepo.Create(ctx, saga); err != nil {
		return nil, err
	}
	booking.SagaID = saga.SagaID

	initialLog := domain.NewStateLog(saga, nil, domain.StateBookingInitiated, "booking created", "api", 0)
	if err := o.stateLogRepo.Create(ctx, initialLog); err != nil {
		return nil, err
	}

	step := firstStep(booking.BookingType)
	if err := o.advance(ctx, saga, booking, pendingState(step), "saga started", "api"); err != nil {
		return nil, err
	}
	if err := o.appendCommand(ctx, saga, booking, domain.ReserveAction(step), ""); err != nil {
		return nil, err
	}

	if o.metrics != nil {
		o.metrics.RecordSagaStarted(ctx)
	}

	o.logger.Info("saga started",
		slog.String("saga_id", saga.SagaID),
		slog.String("booking_id", booking.ID.String()),
		slog.String("booking_type", string(booking.BookingType)),
	)
	return saga, nil
}

// HandleEvent applies one domain event to its saga. Events for unknown or
// already completed sagas are dropped idempotently; a concurrent update on
// the same saga surfaces as ErrConflict and the caller retries through
// broker redelivery.
func (o *Orchestrator) HandleEvent(ctx context.Context, event *domain.Event) error {
	return o.txManager.WithTx(ctx, func(ctx context.Context) error {
		saga, err := o.loadSaga(ctx, event)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			o.logger.Warn("event for unknown saga dropped",
				slog.String("event_type", event.EventType),
				slog.String("booking_id", event.BookingID.String()),
			)
			o.recordDropped(ctx, "unknown_saga")
			return nil
		}
		if err != nil {
			return err
		}

		if saga.Completed() {
			o.logger.Info("event for completed saga dropped",
				slog.String("saga_id", saga.SagaID),
				slog.String("event_type", event.EventType),
				slog.String("final_state", string(saga.CurrentState)),
			)
			o.recordDropped(ctx, "saga_completed")
			return nil
		}

		booking, err := o.bookingRepo.GetByID(ctx, saga.BookingID.String())
		if err != nil {
			return err
		}

		switch {
		case event.Kind == domain.EventUnknown:
			o.logger.Warn("unknown event kind dropped",
				slog.String("saga_id", saga.SagaID),
				slog.String("event_type", event.EventType),
			)
			o.recordDropped(ctx, "unknown_kind")
			return nil

		case event.Kind == domain.EventCancelBookingRequested:
			reason := event.Reason
			if reason == "" {
				reason = "cancellation requested"
			}
			return o.beginCompensation(ctx, saga, booking, reason, event.EventType)

		case event.Kind.IsFailure():
			reason := event.Reason
			if reason == "" {
				reason = string(event.Kind.FailedStep()) + " step failed"
			}
			return o.beginCompensation(ctx, saga, booking, reason, event.EventType)

		case event.Kind.IsCompensationAck():
			return o.continueCompensation(ctx, saga, booking, event)

		default:
			return o.advanceForward(ctx, saga, booking, event)
		}
	})
}

func (o *Orchestrator) loadSaga(ctx context.Context, event *domain.Event) (*domain.Instance, error) {
	if event.SagaID != "" {
		return o.sagaRepo.GetBySagaID(ctx, event.SagaID)
	}
	return o.sagaRepo.GetByBookingID(ctx, event.BookingID.String())
}

// advanceForward moves the saga along the happy path.
func (o *Orchestrator) advanceForward(ctx context.Context, saga *domain.Instance, booking *bookingDomain.Booking, event *domain.Event) error {
	switch event.Kind {
	case domain.EventFlightReserved:
		if err := o.advance(ctx, saga, booking, domain.StateFlightReserved, "flight reserved", event.EventType); err != nil {
			return o.dropOnInvalidTransition(ctx, saga, event, err)
		}
		return o.issueNextForwardCommand(ctx, saga, booking, domain.StepFlight, event.EventType)

	case domain.EventHotelReserved:
		if err := o.advance(ctx, saga, booking, domain.StateHotelReserved, "hotel reserved", event.EventType); err != nil {
			return o.dropOnInvalidTransition(ctx, saga, event, err)
		}
		return o.issueNextForwardCommand(ctx, saga, booking, domain.StepHotel, event.EventType)

	case domain.EventPaymentProcessed:
		if err := o.advance(ctx, saga, booking, domain.StatePaymentCompleted, "payment processed", event.EventType); err != nil {
			return o.dropOnInvalidTransition(ctx, saga, event, err)
		}
		return o.complete(ctx, saga, booking, event.EventType)

	default:
		o.logger.Warn("unhandled event kind dropped",
			slog.String("saga_id", saga.SagaID),
			slog.String("event_type", event.EventType),
		)
		o.recordDropped(ctx, "unhandled_kind")
		return nil
	}
}

// issueNextForwardCommand dispatches the command for the step after the one
// that just completed.
func (o *Orchestrator) issueNextForwardCommand(ctx context.Context, saga *domain.Instance, booking *bookingDomain.Booking, completed domain.Step, triggeredBy string) error {
	var next domain.Step
	switch completed {
	case domain.StepFlight:
		if booking.BookingType.HasHotel() {
			next = domain.StepHotel
		} else {
			next = domain.StepPayment
		}
	case domain.StepHotel:
		next = domain.StepPayment
	default:
		return nil
	}

	if err := o.advance(ctx, saga, booking, pendingState(next), string(next)+" step dispatched", triggeredBy); err != nil {
		return err
	}
	return o.appendCommand(ctx, saga, booking, domain.ReserveAction(next), "")
}

// complete drives the saga to BOOKING_COMPLETED and confirms the booking.
func (o *Orchestrator) complete(ctx context.Context, saga *domain.Instance, booking *bookingDomain.Booking, triggeredBy string) error {
	if err := o.advance(ctx, saga, booking, domain.StateBookingCompleted, "all steps completed", triggeredBy); err != nil {
		return err
	}

	booking.Confirm()
	if err := o.bookingRepo.Update(ctx, booking); err != nil {
		return err
	}
	if err := o.emitLifecycleEvent(ctx, bookingDomain.EventTypeBookingConfirmed, booking); err != nil {
		return err
	}

	if o.metrics != nil {
		o.metrics.RecordSagaCompleted(ctx, string(domain.StateBookingCompleted), time.Since(saga.StartedAt))
	}
	o.logger.Info("saga completed",
		slog.String("saga_id", saga.SagaID),
		slog.String("booking_id", booking.ID.String()),
	)
	return nil
}

// beginCompensation enters the failure branch: completed forward steps are
// undone in reverse order, one compensating command in flight at a time.
func (o *Orchestrator) beginCompensation(ctx context.Context, saga *domain.Instance, booking *bookingDomain.Booking, reason, triggeredBy string) error {
	completed := domain.CompletedSteps(saga.CurrentState, booking.BookingType)

	saga.BeginCompensation(reason)
	if o.metrics != nil {
		o.metrics.RecordCompensationStarted(ctx, reason)
	}

	if len(completed) == 0 {
		// Nothing to undo.
		return o.cancel(ctx, saga, booking, reason, triggeredBy)
	}

	last := completed[len(completed)-1]
	if err := o.advance(ctx, saga, booking, domain.CompensatingState(last), reason, triggeredBy); err != nil {
		return err
	}

	o.logger.Info("compensation started",
		slog.String("saga_id", saga.SagaID),
		slog.String("reason", reason),
		slog.Int("steps_to_undo", len(completed)),
	)
	return o.appendCommand(ctx, saga, booking, domain.CompensationAction(last), reason)
}

// continueCompensation handles a compensation acknowledgement and either
// dispatches the next compensating command or finishes the saga.
func (o *Orchestrator) continueCompensation(ctx context.Context, saga *domain.Instance, booking *bookingDomain.Booking, event *domain.Event) error {
	if !saga.CurrentState.IsCompensating() {
		o.logger.Warn("compensation ack outside compensation dropped",
			slog.String("saga_id", saga.SagaID),
			slog.String("event_type", event.EventType),
			slog.String("current_state", string(saga.CurrentState)),
		)
		o.recordDropped(ctx, "unexpected_compensation_ack")
		return nil
	}

	reason := compensationReason(saga)
	next, ok := nextCompensationStep(saga.CurrentState, booking.BookingType)
	if !ok {
		return o.cancel(ctx, saga, booking, reason, event.EventType)
	}

	if err := o.advance(ctx, saga, booking, domain.CompensatingState(next), "undoing "+string(next), event.EventType); err != nil {
		return err
	}
	return o.appendCommand(ctx, saga, booking, domain.CompensationAction(next), reason)
}

// cancel finishes compensation: the saga ends BOOKING_CANCELLED and the
// booking records the reason.
func (o *Orchestrator) cancel(ctx context.Context, saga *domain.Instance, booking *bookingDomain.Booking, reason, triggeredBy string) error {
	if err := o.advance(ctx, saga, booking, domain.StateBookingCancelled, reason, triggeredBy); err != nil {
		return err
	}

	booking.Cancel(bookingDomain.StatusCancelled, reason)
	if err := o.bookingRepo.Update(ctx, booking); err != nil {
		return err
	}
	if err := o.emitLifecycleEvent(ctx, bookingDomain.EventTypeBookingCancelled, booking); err != nil {
		return err
	}

	if o.metrics != nil {
		o.metrics.RecordSagaCompleted(ctx, string(domain.StateBookingCancelled), time.Since(saga.StartedAt))
	}
	o.logger.Info("saga cancelled",
		slog.String("saga_id", saga.SagaID),
		slog.String("booking_id", booking.ID.String()),
		slog.String("reason", reason),
	)
	return nil
}

// Fail forces the saga to BOOKING_FAILED. Used when a compensating command
// itself fails or the recovery sweep gives up; the booking is surfaced for
// operator intervention.
func (o *Orchestrator) Fail(ctx context.Context, saga *domain.Instance, reason string) error {
	return o.txManager.WithTx(ctx, func(ctx context.Context) error {
		booking, err := o.bookingRepo.GetByID(ctx, saga.BookingID.String())
		if err != nil {
			return err
		}

		if err := o.advance(ctx, saga, booking, domain.StateBookingFailed, reason, "system"); err != nil {
			return err
		}

		booking.Fail(reason)
		if err := o.bookingRepo.Update(ctx, booking); err != nil {
			return err
		}
		if err := o.emitLifecycleEvent(ctx, bookingDomain.EventTypeBookingFailed, booking); err != nil {
			return err
		}

		if o.metrics != nil {
			o.metrics.RecordSagaCompleted(ctx, string(domain.StateBookingFailed), time.Since(saga.StartedAt))
		}
		o.logger.Error("saga failed",
			slog.String("saga_id", saga.SagaID),
			slog.String("booking_id", booking.ID.String()),
			slog.String("reason", reason),
		)
		return nil
	})
}

// Reprompt re-appends the command for the saga's current waiting state. The
// recovery sweep uses it for sagas whose command or reply got lost; the
// participant's own idempotency makes re-sending safe.
func (o *Orchestrator) Reprompt(ctx context.Context, saga *domain.Instance) error {
	return o.txManager.WithTx(ctx, func(ctx context.Context) error {
		action, ok := pendingAction(saga.CurrentState)
		if !ok {
			o.logger.Warn("saga not in a waiting state, nothing to reprompt",
				slog.String("saga_id", saga.SagaID),
				slog.String("current_state", string(saga.CurrentState)),
			)
			return nil
		}

		booking, err := o.bookingRepo.GetByID(ctx, saga.BookingID.String())
		if err != nil {
			return err
		}

		o.logger.Info("reprompting saga",
			slog.String("saga_id", saga.SagaID),
			slog.String("current_state", string(saga.CurrentState)),
			slog.String("action", action),
		)
		return o.appendCommand(ctx, saga, booking, action, compensationReasonIfAny(saga))
	})
}

// advance performs one validated transition, persists the instance under its
// version guard, writes the audit log entry and mirrors the state onto the
// booking.
func (o *Orchestrator) advance(ctx context.Context, saga *domain.Instance, booking *bookingDomain.Booking, target domain.State, reason, triggeredBy string) error {
	from := saga.CurrentState
	enteredAt := saga.LastUpdatedAt

	if err := saga.Transition(target); err != nil {
		return err
	}
	if err := o.sagaRepo.Update(ctx, saga); err != nil {
		return err
	}

	durationMs := time.Since(enteredAt).Milliseconds()
	log := domain.NewStateLog(saga, &from, target, reason, triggeredBy, durationMs)
	if err := o.stateLogRepo.Create(ctx, log); err != nil {
		return err
	}

	booking.SetSagaState(target)
	return o.bookingRepo.Update(ctx, booking)
}

// appendCommand builds the participant command and appends it to the outbox
// inside the current transaction.
func (o *Orchestrator) appendCommand(ctx context.Context, saga *domain.Instance, booking *bookingDomain.Booking, action, compensationReason string) error {
	cmd := domain.NewCommand(saga.SagaID, booking.ID, booking.UserID, action)
	cmd.BookingType = string(booking.BookingType)
	cmd.TotalAmount = booking.TotalAmount
	cmd.Currency = booking.Currency
	if compensationReason != "" || cmd.IsCompensation() {
		cmd.MarkAsCompensation(compensationReason)
	}

	payload, err := cmd.Marshal()
	if err != nil {
		return err
	}

	event := outboxDomain.NewSagaCommandEvent(action, saga.SagaID, payload, o.topicFor(action))
	return o.outboxWriter.Append(ctx, event)
}

// emitLifecycleEvent appends a booking lifecycle event to the outbox within
// the current transaction.
func (o *Orchestrator) emitLifecycleEvent(ctx context.Context, eventType string, booking *bookingDomain.Booking) error {
	event, err := bookingDomain.NewLifecycleOutboxEvent(eventType, booking, o.config.BookingEventsTopic)
	if err != nil {
		return err
	}
	return o.outboxWriter.Append(ctx, event)
}

func (o *Orchestrator) topicFor(action string) string {
	switch action {
	case domain.ActionProcessPayment, domain.ActionRefundPayment:
		return o.config.PaymentCommandTopic
	}
	return o.config.SagaCommandTopic
}

// dropOnInvalidTransition swallows out-of-order or duplicate events: the
// transition table already rejected them so applying again cannot corrupt
// state.
func (o *Orchestrator) dropOnInvalidTransition(ctx context.Context, saga *domain.Instance, event *domain.Event, err error) error {
	if apperrors.Is(err, apperrors.ErrInvalidTransition) || apperrors.Is(err, apperrors.ErrSagaCompleted) {
		o.logger.Warn("out-of-order event dropped",
			slog.String("saga_id", saga.SagaID),
			slog.String("event_type", event.EventType),
			slog.String("current_state", string(saga.CurrentState)),
		)
		o.recordDropped(ctx, "invalid_transition")
		return nil
	}
	return err
}

func (o *Orchestrator) recordDropped(ctx context.Context, cause string) {
	if o.metrics != nil {
		o.metrics.RecordEventDropped(ctx, cause)
	}
}

func firstStep(bookingType domain.BookingType) domain.Step {
	if bookingType.HasFlight() {
		return domain.StepFlight
	}
	return domain.StepHotel
}

func pendingState(step domain.Step) domain.State {
	switch step {
	case domain.StepPayment:
		return domain.StatePaymentPending
	case domain.StepHotel:
		return domain.StateHotelReservationPending
	default:
		return domain.StateFlightReservationPending
	}
}

// nextCompensationStep returns the step to undo after the current
// compensating state finishes, walking the forward steps in reverse.
func nextCompensationStep(current domain.State, bookingType domain.BookingType) (domain.Step, bool) {
	switch current {
	case domain.StateCompensatingPayment:
		if bookingType.HasHotel() {
			return domain.StepHotel, true
		}
		if bookingType.HasFlight() {
			return domain.StepFlight, true
		}
	case domain.StateCompensatingHotel:
		if bookingType.HasFlight() {
			return domain.StepFlight, true
		}
	}
	return "", false
}

func compensationReason(saga *domain.Instance) string {
	if saga.CompensationReason != nil {
		return *saga.CompensationReason
	}
	return "compensation"
}

func compensationReasonIfAny(saga *domain.Instance) string {
	if saga.IsCompensating {
		return compensationReason(saga)
	}
	return ""
}

// pendingAction maps a waiting state to the command the saga is waiting on.
func pendingAction(state domain.State) (string, bool) {
	switch state {
	case domain.StateFlightReservationPending:
		return domain.ActionReserveFlight, true
	case domain.StateHotelReservationPending:
		return domain.ActionReserveHotel, true
	case domain.StatePaymentPending:
		return domain.ActionProcessPayment, true
	case domain.StateCompensatingFlight:
		return domain.ActionCancelFlightReservation, true
	case domain.StateCompensatingHotel:
		return domain.ActionCancelHotelReservation, true
	case domain.StateCompensatingPayment:
		return domain.ActionRefundPayment, true
	}
	return "", false
}
