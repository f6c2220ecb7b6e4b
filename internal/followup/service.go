package followup

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"leadflow/internal/models"
	"leadflow/internal/repository"
)

// Follow-up cadences. The pipeline hard-codes these: the first touch lands
// two days after a lead enters follow_ups, then every seven days until the
// deal closes.
const (
	InitialFollowUpDays   = 2
	RecurringIntervalDays = 7
)

// Stale-reference errors: the referenced row disappeared between scheduling
// and processing (e.g. lead deleted). Callers can match with errors.Is.
var (
	ErrLeadNotFound = errors.New("lead not found")
	ErrTaskNotFound = errors.New("task not found")
)

// DueFollowUp is one actionable entry returned by ProcessDueFollowUps.
type DueFollowUp struct {
	ScheduleID  uint      `json:"schedule_id"`
	LeadID      uint      `json:"lead_id"`
	Company     string    `json:"company"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Type        string    `json:"type"`
}

// Service owns the lifecycle of follow-up schedules: creation, settlement of
// due occurrences, cancellation on deal closure, and the periodic
// due-processing pass. All multi-row mutations run inside a transaction, and
// operations touching a single lead's schedules are serialized per lead so
// the check-then-create idempotency guard cannot race with itself.
type Service struct {
	db           *gorm.DB
	logger       *zap.Logger
	systemUserID uint
	leadLocks    *keyedMutex
	now          func() time.Time
}

// NewService creates a follow-up service. systemUserID is the acting user
// recorded on tasks created for leads that have no owner.
func NewService(db *gorm.DB, logger *zap.Logger, systemUserID uint) *Service {
	return &Service{
		db:           db,
		logger:       logger,
		systemUserID: systemUserID,
		leadLocks:    newKeyedMutex(),
		now:          time.Now,
	}
}

// ScheduleInitialFollowUp creates the first follow-up for a lead, due two
// days out, together with its companion task. Idempotent: an existing active
// initial schedule is returned unchanged.
func (s *Service) ScheduleInitialFollowUp(lead *models.Lead, actingUserID uint) (*models.FollowUpSchedule, error) {
	unlock := s.leadLocks.Lock(lead.ID)
	defer unlock()

	var schedule *models.FollowUpSchedule
	err := s.db.Transaction(func(tx *gorm.DB) error {
		schedules := repository.NewFollowUpScheduleRepository(tx)

		existing, err := schedules.FindActiveByLeadAndType(lead.ID, models.FollowUpTypeInitialEmail)
		if err == nil {
			schedule = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := s.now()
		due := now.Add(InitialFollowUpDays * 24 * time.Hour)

		task := &models.Task{
			LeadID:      &lead.ID,
			CreatedBy:   actingUserID,
			Type:        models.TaskTypeFollowUp,
			Title:       fmt.Sprintf("Follow-up: %s", lead.Company),
			Description: fmt.Sprintf("Initial follow-up email for %s. Contact: %s (%s)", lead.Company, lead.Name, lead.Email),
			DueDate:     due,
			Priority:    models.TaskPriorityMedium,
			Status:      models.TaskStatusPending,
		}
		if err := repository.NewTaskRepository(tx).Create(task); err != nil {
			return err
		}

		schedule = &models.FollowUpSchedule{
			LeadID:      lead.ID,
			TaskID:      &task.ID,
			Type:        models.FollowUpTypeInitialEmail,
			Status:      models.FollowUpStatusActive,
			ScheduledAt: due,
			Notes:       "Initial follow-up scheduled 2 days after contact",
		}
		return schedules.Create(schedule)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Initial follow-up scheduled",
		zap.Uint("lead_id", lead.ID),
		zap.String("company", lead.Company),
		zap.Uint("schedule_id", schedule.ID),
		zap.Time("scheduled_at", schedule.ScheduledAt),
	)
	return schedule, nil
}

// ScheduleRecurringFollowUps creates the seven-day recurring follow-up for a
// lead. Closed deals never get new recurring follow-ups; the call returns
// (nil, nil). Idempotent like the initial scheduler.
func (s *Service) ScheduleRecurringFollowUps(lead *models.Lead, actingUserID uint) (*models.FollowUpSchedule, error) {
	if lead.IsClosed() {
		return nil, nil
	}

	unlock := s.leadLocks.Lock(lead.ID)
	defer unlock()

	var schedule *models.FollowUpSchedule
	err := s.db.Transaction(func(tx *gorm.DB) error {
		schedules := repository.NewFollowUpScheduleRepository(tx)

		existing, err := schedules.FindActiveByLeadAndType(lead.ID, models.FollowUpTypeFollowUpEmail)
		if err == nil {
			schedule = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := s.now()
		due := now.Add(RecurringIntervalDays * 24 * time.Hour)

		task := &models.Task{
			LeadID:      &lead.ID,
			CreatedBy:   actingUserID,
			Type:        models.TaskTypeFollowUp,
			Title:       fmt.Sprintf("Recurring Follow-up: %s", lead.Company),
			Description: fmt.Sprintf("Recurring follow-up email for %s. Contact: %s (%s)", lead.Company, lead.Name, lead.Email),
			DueDate:     due,
			Priority:    models.TaskPriorityMedium,
			Status:      models.TaskStatusPending,
		}
		if err := repository.NewTaskRepository(tx).Create(task); err != nil {
			return err
		}

		interval := RecurringIntervalDays
		schedule = &models.FollowUpSchedule{
			LeadID:           lead.ID,
			TaskID:           &task.ID,
			Type:             models.FollowUpTypeFollowUpEmail,
			Status:           models.FollowUpStatusActive,
			ScheduledAt:      due,
			IntervalDays:     &interval,
			IsRecurring:      true,
			NextFollowUpDate: &due,
			Notes:            "Recurring follow-up scheduled every 7 days until deal is closed",
		}
		return schedules.Create(schedule)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Recurring follow-up scheduled",
		zap.Uint("lead_id", lead.ID),
		zap.String("company", lead.Company),
		zap.Uint("schedule_id", schedule.ID),
		zap.Int("interval_days", RecurringIntervalDays),
		zap.Time("scheduled_at", schedule.ScheduledAt),
	)
	return schedule, nil
}

// HandleLeadStatusChange is the hook invoked after a lead's pipeline status
// is persisted with a new value. Entry into follow_ups creates both the
// initial and the recurring schedule, acting as the lead's owner (or the
// configured system user when the lead has none).
func (s *Service) HandleLeadStatusChange(lead *models.Lead, oldStatus, newStatus string) error {
	if newStatus != models.LeadStatusFollowUps || oldStatus == newStatus {
		return nil
	}

	userID := s.actingUserFor(lead)

	if _, err := s.ScheduleInitialFollowUp(lead, userID); err != nil {
		return fmt.Errorf("schedule initial follow-up: %w", err)
	}
	if _, err := s.ScheduleRecurringFollowUps(lead, userID); err != nil {
		return fmt.Errorf("schedule recurring follow-ups: %w", err)
	}
	return nil
}

// MarkFollowUpCompleted is the hook invoked after an activity (call, email,
// meeting, note) is logged against a lead. Any real contact settles every
// schedule for that lead that is currently due: non-recurring schedules
// complete, recurring ones roll forward to the next occurrence.
func (s *Service) MarkFollowUpCompleted(activity *models.Activity) error {
	lead, err := s.loadLead(activity.LeadID)
	if err != nil {
		return err
	}

	unlock := s.leadLocks.Lock(lead.ID)
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		due, err := repository.NewFollowUpScheduleRepository(tx).FindActiveDueByLead(lead.ID, s.now())
		if err != nil {
			return err
		}

		for i := range due {
			if err := s.settleSchedule(tx, lead, &due[i]); err != nil {
				return err
			}
			s.logger.Info("Follow-up settled by activity",
				zap.Uint("schedule_id", due[i].ID),
				zap.Uint("lead_id", lead.ID),
				zap.Uint("activity_id", activity.ID),
			)
		}
		return nil
	})
}

// settleSchedule resolves one due occurrence. A recurring schedule on an open
// lead stays active and is rolled forward; everything else completes
// terminally.
func (s *Service) settleSchedule(tx *gorm.DB, lead *models.Lead, schedule *models.FollowUpSchedule) error {
	now := s.now()

	if schedule.IsRecurring && schedule.IntervalDays != nil && !lead.IsClosed() {
		return s.rollForward(tx, lead, schedule, now)
	}

	err := repository.NewFollowUpScheduleRepository(tx).Update(schedule.ID, map[string]interface{}{
		"status":             models.FollowUpStatusCompleted,
		"completed_at":       now,
		"last_occurrence_at": now,
	})
	if err != nil {
		return err
	}
	schedule.Status = models.FollowUpStatusCompleted
	schedule.CompletedAt = &now
	schedule.LastOccurrenceAt = &now
	return nil
}

// rollForward advances a recurring schedule to its next occurrence: a fresh
// companion task is created and the same schedule row is re-pointed at it.
// One row per recurring slot, not a chain of historical rows.
func (s *Service) rollForward(tx *gorm.DB, lead *models.Lead, schedule *models.FollowUpSchedule, now time.Time) error {
	interval := time.Duration(*schedule.IntervalDays) * 24 * time.Hour

	// NextFollowUpDate anchors the cadence so close-together settlements
	// do not drift the schedule. A stale anchor (settlement happened after
	// the next occurrence was already due) falls back to now + interval,
	// otherwise the rolled-forward occurrence would be due immediately.
	nextDate := now.Add(interval)
	if schedule.NextFollowUpDate != nil && schedule.NextFollowUpDate.After(now) {
		nextDate = *schedule.NextFollowUpDate
	}

	task := &models.Task{
		LeadID:      &lead.ID,
		CreatedBy:   s.actingUserFor(lead),
		Type:        models.TaskTypeFollowUp,
		Title:       fmt.Sprintf("Recurring Follow-up: %s", lead.Company),
		Description: fmt.Sprintf("Recurring follow-up email for %s. Contact: %s (%s)", lead.Company, lead.Name, lead.Email),
		DueDate:     nextDate,
		Priority:    models.TaskPriorityMedium,
		Status:      models.TaskStatusPending,
	}
	if err := repository.NewTaskRepository(tx).Create(task); err != nil {
		return err
	}

	following := nextDate.Add(interval)
	err := repository.NewFollowUpScheduleRepository(tx).Update(schedule.ID, map[string]interface{}{
		"task_id":             task.ID,
		"scheduled_at":        nextDate,
		"next_follow_up_date": following,
		"last_occurrence_at":  now,
	})
	if err != nil {
		return err
	}

	schedule.TaskID = &task.ID
	schedule.ScheduledAt = nextDate
	schedule.NextFollowUpDate = &following
	schedule.LastOccurrenceAt = &now

	s.logger.Info("Next recurring follow-up created",
		zap.Uint("lead_id", lead.ID),
		zap.Uint("schedule_id", schedule.ID),
		zap.Uint("task_id", task.ID),
		zap.Time("next_date", nextDate),
	)
	return nil
}

// CancelFollowUpsForClosedDeal cancels every active schedule on a closed
// lead and any linked task that is not already completed. Safe to call
// repeatedly: settled schedules are untouched.
func (s *Service) CancelFollowUpsForClosedDeal(lead *models.Lead) error {
	unlock := s.leadLocks.Lock(lead.ID)
	defer unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		schedules := repository.NewFollowUpScheduleRepository(tx)
		tasks := repository.NewTaskRepository(tx)

		active, err := schedules.FindActiveByLead(lead.ID)
		if err != nil {
			return err
		}

		now := s.now()
		for i := range active {
			schedule := &active[i]

			err := schedules.Update(schedule.ID, map[string]interface{}{
				"status":       models.FollowUpStatusCancelled,
				"completed_at": now,
				"is_recurring": false,
			})
			if err != nil {
				return err
			}

			if schedule.TaskID != nil {
				if err := tasks.CancelIfOpen(*schedule.TaskID, now); err != nil {
					return err
				}
			}

			s.logger.Info("Follow-up cancelled for closed deal",
				zap.Uint("schedule_id", schedule.ID),
				zap.Uint("lead_id", lead.ID),
				zap.String("lead_status", lead.Status),
			)
		}
		return nil
	})
}

// ProcessDueFollowUps is the polling entry point, intended to run hourly. It
// reconciles every due active schedule against its lead and task and returns
// the ones that are still genuinely actionable. One bad schedule never aborts
// the batch; per-item failures are collected and joined into the returned
// error alongside the successfully processed entries.
func (s *Service) ProcessDueFollowUps() ([]DueFollowUp, error) {
	now := s.now()

	due, err := repository.NewFollowUpScheduleRepository(s.db).FindDue(now)
	if err != nil {
		return nil, err
	}

	processed := make([]DueFollowUp, 0, len(due))
	var itemErrs []error

	for i := range due {
		schedule := &due[i]

		entry, err := s.processDueSchedule(schedule)
		if err != nil {
			itemErrs = append(itemErrs, fmt.Errorf("schedule %d: %w", schedule.ID, err))
			s.logger.Error("Due follow-up processing failed",
				zap.Uint("schedule_id", schedule.ID),
				zap.Uint("lead_id", schedule.LeadID),
				zap.Error(err),
			)
			continue
		}
		if entry != nil {
			processed = append(processed, *entry)
		}
	}

	return processed, errors.Join(itemErrs...)
}

// processDueSchedule reconciles a single due schedule. A nil entry means the
// schedule resolved without remaining work (closed lead, manually completed
// task).
func (s *Service) processDueSchedule(schedule *models.FollowUpSchedule) (*DueFollowUp, error) {
	lead, err := s.loadLead(schedule.LeadID)
	if err != nil {
		return nil, err
	}

	// Closed leads with stale active schedules get garbage-collected here.
	if lead.IsClosed() {
		if err := s.CancelFollowUpsForClosedDeal(lead); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if schedule.TaskID == nil {
		if err := s.attachTask(lead, schedule); err != nil {
			return nil, err
		}
	} else {
		task, err := repository.NewTaskRepository(s.db).FindByID(*schedule.TaskID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Task was deleted out from under the schedule; recreate it.
			if err := s.attachTask(lead, schedule); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		case task.Status == models.TaskStatusCompleted:
			// A human closed the task directly; settle the schedule and
			// drop it from the report.
			unlock := s.leadLocks.Lock(lead.ID)
			defer unlock()
			err := s.db.Transaction(func(tx *gorm.DB) error {
				return s.settleSchedule(tx, lead, schedule)
			})
			if err != nil {
				return nil, err
			}
			return nil, nil
		}
	}

	return &DueFollowUp{
		ScheduleID:  schedule.ID,
		LeadID:      lead.ID,
		Company:     lead.Company,
		ScheduledAt: schedule.ScheduledAt,
		Type:        schedule.Type,
	}, nil
}

// attachTask creates a task for a schedule slot that lost (or never had) one
// and links it, due at the schedule's own due time.
func (s *Service) attachTask(lead *models.Lead, schedule *models.FollowUpSchedule) error {
	description := schedule.Notes
	if description == "" {
		description = fmt.Sprintf("Follow-up for %s", lead.Company)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		task := &models.Task{
			LeadID:      &lead.ID,
			CreatedBy:   s.actingUserFor(lead),
			Type:        models.TaskTypeFollowUp,
			Title:       fmt.Sprintf("Follow-up: %s", lead.Company),
			Description: description,
			DueDate:     schedule.ScheduledAt,
			Priority:    models.TaskPriorityMedium,
			Status:      models.TaskStatusPending,
		}
		if err := repository.NewTaskRepository(tx).Create(task); err != nil {
			return err
		}

		err := repository.NewFollowUpScheduleRepository(tx).Update(schedule.ID, map[string]interface{}{
			"task_id": task.ID,
		})
		if err != nil {
			return err
		}
		schedule.TaskID = &task.ID
		return nil
	})
}

// ActiveFollowUps returns all active schedules for a lead, soonest first.
func (s *Service) ActiveFollowUps(leadID uint) ([]models.FollowUpSchedule, error) {
	return repository.NewFollowUpScheduleRepository(s.db).FindActiveByLead(leadID)
}

func (s *Service) actingUserFor(lead *models.Lead) uint {
	if lead.AddedBy != nil {
		return *lead.AddedBy
	}
	return s.systemUserID
}

func (s *Service) loadLead(id uint) (*models.Lead, error) {
	lead, err := repository.NewLeadRepository(s.db).FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrLeadNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return lead, nil
}
