package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"leadflow/internal/config"
	"leadflow/internal/followup"
	"leadflow/internal/mailer"
	"leadflow/internal/pkg/runguard"
	"leadflow/internal/repository"
)

// Job slot names used with the run guard.
const (
	jobProcessFollowUps = "follow-ups:process"
	jobTaskReminders    = "tasks:send-reminders"
	jobFollowUpEmails   = "follow-ups:send-emails"
)

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.Config
	logger    *zap.Logger
	repos     *CronRepos
	followUps *followup.Service
	mail      mailer.Sender
	guard     runguard.RunGuard
}

// CronRepos bundles repositories needed by cron jobs.
type CronRepos struct {
	User     *repository.UserRepository
	Lead     *repository.LeadRepository
	Task     *repository.TaskRepository
	Schedule *repository.FollowUpScheduleRepository
}

// New creates a new cron scheduler. mail may be nil when reminder mail is
// disabled.
func New(cfg *config.Config, repos *CronRepos, followUps *followup.Service, mail mailer.Sender, guard runguard.RunGuard, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		cfg:       cfg,
		logger:    logger,
		repos:     repos,
		followUps: followUps,
		mail:      mail,
		guard:     guard,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Process due follow-up schedules - hourly
	s.cron.AddFunc("0 * * * *", func() {
		s.logger.Debug("Running: process due follow-ups")
		s.processFollowUps()
	})

	// Task reminder emails - daily at 9 AM
	s.cron.AddFunc("0 9 * * *", func() {
		s.logger.Debug("Running: task reminders")
		s.sendTaskReminders()
	})

	// Follow-up reminder emails - every 2 hours
	s.cron.AddFunc("0 */2 * * *", func() {
		s.logger.Debug("Running: follow-up reminder emails")
		s.sendFollowUpEmails()
	})

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// ── Due follow-up processing (hourly) ─────────────────────────────────

// processFollowUps runs the due-processing batch under the run guard so a
// slow run overlapping the next tick is never doubled up.
func (s *Scheduler) processFollowUps() {
	defer s.recoverFromPanic("processFollowUps")

	release, ok, err := s.guard.TryAcquire(context.Background(), jobProcessFollowUps)
	if err != nil {
		s.logger.Error("Run guard unavailable", zap.String("job", jobProcessFollowUps), zap.Error(err))
		return
	}
	if !ok {
		s.logger.Warn("Previous follow-up processing run still in flight, skipping tick")
		return
	}
	defer release()

	processed, err := s.followUps.ProcessDueFollowUps()
	if err != nil {
		// Per-item failures; the batch itself continued.
		s.logger.Error("Follow-up processing finished with errors", zap.Error(err))
	}

	if len(processed) == 0 {
		s.logger.Info("No due follow-ups found")
		return
	}

	for _, item := range processed {
		s.logger.Info("Due follow-up",
			zap.Uint("schedule_id", item.ScheduleID),
			zap.Uint("lead_id", item.LeadID),
			zap.String("company", item.Company),
			zap.String("type", item.Type),
			zap.Time("scheduled_at", item.ScheduledAt),
		)
	}
	s.logger.Info("Processed follow-up schedules", zap.Int("count", len(processed)))
}

// ── Task reminders (daily) ────────────────────────────────────────────

func (s *Scheduler) sendTaskReminders() {
	defer s.recoverFromPanic("sendTaskReminders")

	if s.mail == nil {
		return
	}

	release, ok, err := s.guard.TryAcquire(context.Background(), jobTaskReminders)
	if err != nil {
		s.logger.Error("Run guard unavailable", zap.String("job", jobTaskReminders), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	defer release()

	now := time.Now()
	ahead := time.Duration(s.cfg.CRM.ReminderHoursAhead) * time.Hour

	upcoming, err := s.repos.Task.FindDueBetween(now, now.Add(ahead))
	if err != nil {
		s.logger.Error("Failed to load upcoming tasks", zap.Error(err))
		return
	}
	overdue, err := s.repos.Task.FindOverdue(now)
	if err != nil {
		s.logger.Error("Failed to load overdue tasks", zap.Error(err))
		return
	}

	seen := make(map[uint]bool, len(upcoming)+len(overdue))
	sent, failed := 0, 0

	for _, task := range append(overdue, upcoming...) {
		if seen[task.ID] {
			continue
		}
		seen[task.ID] = true

		user, err := s.repos.User.FindByID(task.CreatedBy)
		if err != nil || user.Email == "" {
			s.logger.Warn("Skipping task reminder, no recipient",
				zap.Uint("task_id", task.ID),
				zap.Uint("created_by", task.CreatedBy),
			)
			continue
		}
		if !user.IsActive {
			continue
		}

		isOverdue := task.DueDate.Before(now)
		body, err := mailer.TaskReminderBody(&task, user.Name, isOverdue)
		if err != nil {
			s.logger.Error("Failed to render task reminder", zap.Uint("task_id", task.ID), zap.Error(err))
			failed++
			continue
		}

		if err := s.mail.Send(user.Email, mailer.TaskReminderSubject(&task, isOverdue), body); err != nil {
			s.logger.Error("Failed to send task reminder",
				zap.Uint("task_id", task.ID),
				zap.String("email", user.Email),
				zap.Error(err),
			)
			failed++
			continue
		}

		sent++
		s.logger.Info("Task reminder sent",
			zap.Uint("task_id", task.ID),
			zap.String("email", user.Email),
			zap.Bool("is_overdue", isOverdue),
		)
	}

	s.logger.Info("Task reminder run finished", zap.Int("sent", sent), zap.Int("failed", failed))
}

// ── Follow-up reminder emails (every 2 hours) ─────────────────────────

func (s *Scheduler) sendFollowUpEmails() {
	defer s.recoverFromPanic("sendFollowUpEmails")

	if s.mail == nil {
		return
	}

	release, ok, err := s.guard.TryAcquire(context.Background(), jobFollowUpEmails)
	if err != nil {
		s.logger.Error("Run guard unavailable", zap.String("job", jobFollowUpEmails), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	defer release()

	dueSchedules, err := s.repos.Schedule.FindDue(time.Now())
	if err != nil {
		s.logger.Error("Failed to load due follow-up schedules", zap.Error(err))
		return
	}
	if len(dueSchedules) == 0 {
		s.logger.Info("No due follow-ups found")
		return
	}

	sent, failed := 0, 0

	for i := range dueSchedules {
		schedule := &dueSchedules[i]

		lead, err := s.repos.Lead.FindByID(schedule.LeadID)
		if err != nil {
			s.logger.Warn("Skipping follow-up reminder, lead missing",
				zap.Uint("schedule_id", schedule.ID),
				zap.Uint("lead_id", schedule.LeadID),
			)
			failed++
			continue
		}
		if lead.IsClosed() {
			continue
		}

		if lead.AddedBy == nil {
			continue
		}
		user, err := s.repos.User.FindByID(*lead.AddedBy)
		if err != nil || user.Email == "" {
			s.logger.Warn("Skipping follow-up reminder, no recipient",
				zap.Uint("schedule_id", schedule.ID),
				zap.Uint("lead_id", lead.ID),
			)
			failed++
			continue
		}

		body, err := mailer.FollowUpReminderBody(lead, schedule, user.Name)
		if err != nil {
			s.logger.Error("Failed to render follow-up reminder", zap.Uint("schedule_id", schedule.ID), zap.Error(err))
			failed++
			continue
		}

		if err := s.mail.Send(user.Email, mailer.FollowUpReminderSubject(lead), body); err != nil {
			s.logger.Error("Failed to send follow-up reminder",
				zap.Uint("schedule_id", schedule.ID),
				zap.String("email", user.Email),
				zap.Error(err),
			)
			failed++
			continue
		}

		sent++
		s.logger.Info("Follow-up reminder sent",
			zap.Uint("schedule_id", schedule.ID),
			zap.Uint("lead_id", lead.ID),
			zap.String("email", user.Email),
		)
	}

	s.logger.Info("Follow-up reminder run finished", zap.Int("sent", sent), zap.Int("failed", failed))
}

func (s *Scheduler) recoverFromPanic(job string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", job), zap.Any("panic", r))
	}
}
