package followup

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"leadflow/internal/bootstrap"
	"leadflow/internal/models"
	"leadflow/internal/repository"
)

const day = 24 * time.Hour

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, bootstrap.MigrateAndSeed(db))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeClock) {
	t.Helper()

	db := newTestDB(t)
	clk := &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	svc := NewService(db, zap.NewNop(), 1)
	svc.now = clk.Now
	return svc, db, clk
}

func makeLead(t *testing.T, db *gorm.DB, status string) *models.Lead {
	t.Helper()

	owner := uint(1)
	lead := &models.Lead{
		Name:    "Dana Reyes",
		Company: "Acme Corp",
		Email:   "dana@acme.example",
		AddedBy: &owner,
		Status:  status,
	}
	require.NoError(t, db.Create(lead).Error)
	return lead
}

func loadSchedule(t *testing.T, db *gorm.DB, id uint) *models.FollowUpSchedule {
	t.Helper()

	schedule, err := repository.NewFollowUpScheduleRepository(db).FindByID(id)
	require.NoError(t, err)
	return schedule
}

func loadTask(t *testing.T, db *gorm.DB, id uint) *models.Task {
	t.Helper()

	task, err := repository.NewTaskRepository(db).FindByID(id)
	require.NoError(t, err)
	return task
}

func countSchedules(t *testing.T, db *gorm.DB, leadID uint) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.FollowUpSchedule{}).Where("lead_id = ?", leadID).Count(&count).Error)
	return count
}

func TestScheduleInitialFollowUp(t *testing.T) {
	svc, db, clk := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	schedule, err := svc.ScheduleInitialFollowUp(lead, 1)
	require.NoError(t, err)
	require.NotNil(t, schedule)

	assert.Equal(t, models.FollowUpTypeInitialEmail, schedule.Type)
	assert.Equal(t, models.FollowUpStatusActive, schedule.Status)
	assert.False(t, schedule.IsRecurring)
	assert.True(t, schedule.ScheduledAt.Equal(clk.Now().Add(2*day)))

	require.NotNil(t, schedule.TaskID)
	task := loadTask(t, db, *schedule.TaskID)
	assert.Equal(t, models.TaskTypeFollowUp, task.Type)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, models.TaskPriorityMedium, task.Priority)
	assert.True(t, task.DueDate.Equal(clk.Now().Add(2*day)))
	assert.Contains(t, task.Title, "Acme Corp")
}

func TestScheduleInitialFollowUpIdempotent(t *testing.T) {
	svc, db, _ := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	first, err := svc.ScheduleInitialFollowUp(lead, 1)
	require.NoError(t, err)
	second, err := svc.ScheduleInitialFollowUp(lead, 1)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, countSchedules(t, db, lead.ID))
}

func TestScheduleRecurringFollowUps(t *testing.T) {
	svc, db, clk := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	schedule, err := svc.ScheduleRecurringFollowUps(lead, 1)
	require.NoError(t, err)
	require.NotNil(t, schedule)

	assert.Equal(t, models.FollowUpTypeFollowUpEmail, schedule.Type)
	assert.True(t, schedule.IsRecurring)
	require.NotNil(t, schedule.IntervalDays)
	assert.Equal(t, 7, *schedule.IntervalDays)
	assert.True(t, schedule.ScheduledAt.Equal(clk.Now().Add(7*day)))
	require.NotNil(t, schedule.NextFollowUpDate)
	assert.True(t, schedule.NextFollowUpDate.Equal(clk.Now().Add(7*day)))

	require.NotNil(t, schedule.TaskID)
	task := loadTask(t, db, *schedule.TaskID)
	assert.True(t, task.DueDate.Equal(clk.Now().Add(7*day)))
}

func TestScheduleRecurringFollowUpsIdempotent(t *testing.T) {
	svc, db, _ := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	first, err := svc.ScheduleRecurringFollowUps(lead, 1)
	require.NoError(t, err)
	second, err := svc.ScheduleRecurringFollowUps(lead, 1)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, countSchedules(t, db, lead.ID))
}

func TestScheduleRecurringFollowUpsSkipsClosedLeads(t *testing.T) {
	svc, db, _ := newTestService(t)

	for _, status := range []string{models.LeadStatusWon, models.LeadStatusLost} {
		lead := makeLead(t, db, status)

		schedule, err := svc.ScheduleRecurringFollowUps(lead, 1)
		require.NoError(t, err)
		assert.Nil(t, schedule)
		assert.EqualValues(t, 0, countSchedules(t, db, lead.ID))
	}
}

func TestHandleLeadStatusChange(t *testing.T) {
	svc, db, _ := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	err := svc.HandleLeadStatusChange(lead, models.LeadStatusNewLead, models.LeadStatusFollowUps)
	require.NoError(t, err)

	schedules, err := svc.ActiveFollowUps(lead.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	byType := map[string]models.FollowUpSchedule{}
	for _, s := range schedules {
		byType[s.Type] = s
	}

	initial, ok := byType[models.FollowUpTypeInitialEmail]
	require.True(t, ok)
	assert.NotNil(t, initial.TaskID)

	recurring, ok := byType[models.FollowUpTypeFollowUpEmail]
	require.True(t, ok)
	assert.True(t, recurring.IsRecurring)
	assert.NotNil(t, recurring.TaskID)
}

func TestHandleLeadStatusChangeIgnoresOtherTransitions(t *testing.T) {
	svc, db, _ := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusNegotiations)

	require.NoError(t, svc.HandleLeadStatusChange(lead, models.LeadStatusFollowUps, models.LeadStatusNegotiations))
	require.NoError(t, svc.HandleLeadStatusChange(lead, models.LeadStatusFollowUps, models.LeadStatusFollowUps))

	assert.EqualValues(t, 0, countSchedules(t, db, lead.ID))
}

func TestMarkFollowUpCompletedSettlesOnlyDueSchedules(t *testing.T) {
	svc, db, clk := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	require.NoError(t, svc.HandleLeadStatusChange(lead, models.LeadStatusNewLead, models.LeadStatusFollowUps))
	schedules, err := svc.ActiveFollowUps(lead.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	initialID := schedules[0].ID // initial due at +2d sorts first
	recurringID := schedules[1].ID

	// Three days later the initial schedule is due, the recurring one is not.
	clk.Advance(3 * day)
	activity := &models.Activity{LeadID: lead.ID, UserID: 1, Type: models.ActivityTypeCall, ActivityDate: clk.Now()}
	require.NoError(t, db.Create(activity).Error)
	require.NoError(t, svc.MarkFollowUpCompleted(activity))

	initial := loadSchedule(t, db, initialID)
	assert.Equal(t, models.FollowUpStatusCompleted, initial.Status)
	require.NotNil(t, initial.CompletedAt)
	assert.True(t, initial.CompletedAt.Equal(clk.Now()))

	recurring := loadSchedule(t, db, recurringID)
	assert.Equal(t, models.FollowUpStatusActive, recurring.Status)
	assert.Nil(t, recurring.CompletedAt)
	assert.Nil(t, recurring.LastOccurrenceAt)
}

func TestMarkFollowUpCompletedRollsRecurringForward(t *testing.T) {
	svc, db, clk := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	schedule, err := svc.ScheduleRecurringFollowUps(lead, 1)
	require.NoError(t, err)
	oldTaskID := *schedule.TaskID

	// Settle one day after the occurrence came due.
	clk.Advance(8 * day)
	settledAt := clk.Now()
	activity := &models.Activity{LeadID: lead.ID, UserID: 1, Type: models.ActivityTypeEmail, ActivityDate: settledAt}
	require.NoError(t, db.Create(activity).Error)
	require.NoError(t, svc.MarkFollowUpCompleted(activity))

	rolled := loadSchedule(t, db, schedule.ID)
	assert.Equal(t, models.FollowUpStatusActive, rolled.Status)
	assert.Nil(t, rolled.CompletedAt)
	require.NotNil(t, rolled.LastOccurrenceAt)
	assert.True(t, rolled.LastOccurrenceAt.Equal(settledAt))

	// The stale anchor is ignored: next occurrence lands interval days out.
	assert.True(t, rolled.ScheduledAt.Equal(settledAt.Add(7*day)))
	require.NotNil(t, rolled.NextFollowUpDate)
	assert.True(t, rolled.NextFollowUpDate.Equal(settledAt.Add(14*day)))

	// The old task is superseded by a fresh one due at the new date.
	require.NotNil(t, rolled.TaskID)
	assert.NotEqual(t, oldTaskID, *rolled.TaskID)
	task := loadTask(t, db, *rolled.TaskID)
	assert.True(t, task.DueDate.Equal(settledAt.Add(7*day)))
	assert.Equal(t, models.TaskStatusPending, task.Status)
}

func TestMarkFollowUpCompletedKeepsCadenceAnchor(t *testing.T) {
	svc, db, clk := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	schedule, err := svc.ScheduleRecurringFollowUps(lead, 1)
	require.NoError(t, err)
	anchor := *schedule.NextFollowUpDate

	// Make the occurrence due without passing the anchor, then settle: the
	// cadence must stay anchored instead of drifting to now + interval.
	require.NoError(t, db.Model(&models.FollowUpSchedule{}).
		Where("id = ?", schedule.ID).
		Update("scheduled_at", clk.Now().Add(-time.Hour)).Error)

	activity := &models.Activity{LeadID: lead.ID, UserID: 1, Type: models.ActivityTypeCall, ActivityDate: clk.Now()}
	require.NoError(t, db.Create(activity).Error)
	require.NoError(t, svc.MarkFollowUpCompleted(activity))

	rolled := loadSchedule(t, db, schedule.ID)
	assert.True(t, rolled.ScheduledAt.Equal(anchor))
	require.NotNil(t, rolled.NextFollowUpDate)
	assert.True(t, rolled.NextFollowUpDate.Equal(anchor.Add(7*day)))
}

func TestMarkFollowUpCompletedCompletesRecurringOnClosedLead(t *testing.T) {
	svc, db, clk := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	schedule, err := svc.ScheduleRecurringFollowUps(lead, 1)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Lead{}).Where("id = ?", lead.ID).
		Update("status", models.LeadStatusWon).Error)

	clk.Advance(8 * day)
	activity := &models.Activity{LeadID: lead.ID, UserID: 1, Type: models.ActivityTypeNote, ActivityDate: clk.Now()}
	require.NoError(t, db.Create(activity).Error)
	require.NoError(t, svc.MarkFollowUpCompleted(activity))

	settled := loadSchedule(t, db, schedule.ID)
	assert.Equal(t, models.FollowUpStatusCompleted, settled.Status)
	assert.NotNil(t, settled.CompletedAt)
}

func TestCancelFollowUpsForClosedDeal(t *testing.T) {
	svc, db, clk := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	require.NoError(t, svc.HandleLeadStatusChange(lead, models.LeadStatusNewLead, models.LeadStatusFollowUps))
	schedules, err := svc.ActiveFollowUps(lead.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	require.NoError(t, db.Model(&models.Lead{}).Where("id = ?", lead.ID).
		Update("status", models.LeadStatusLost).Error)
	lead.Status = models.LeadStatusLost

	require.NoError(t, svc.CancelFollowUpsForClosedDeal(lead))

	for _, s := range schedules {
		cancelled := loadSchedule(t, db, s.ID)
		assert.Equal(t, models.FollowUpStatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CompletedAt)
		assert.True(t, cancelled.CompletedAt.Equal(clk.Now()))
		assert.False(t, cancelled.IsRecurring)

		require.NotNil(t, s.TaskID)
		task := loadTask(t, db, *s.TaskID)
		assert.Equal(t, models.TaskStatusCancelled, task.Status)
		assert.NotNil(t, task.CompletedAt)
	}

	// Second pass is a no-op on already-settled rows.
	clk.Advance(time.Hour)
	require.NoError(t, svc.CancelFollowUpsForClosedDeal(lead))
	for _, s := range schedules {
		cancelled := loadSchedule(t, db, s.ID)
		assert.False(t, cancelled.CompletedAt.Equal(clk.Now()))
	}
}

func TestCancelDoesNotTouchCompletedTasks(t *testing.T) {
	svc, db, clk := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	schedule, err := svc.ScheduleInitialFollowUp(lead, 1)
	require.NoError(t, err)
	require.NoError(t, repository.NewTaskRepository(db).Complete(*schedule.TaskID, clk.Now()))

	lead.Status = models.LeadStatusWon
	require.NoError(t, svc.CancelFollowUpsForClosedDeal(lead))

	task := loadTask(t, db, *schedule.TaskID)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
}

func TestProcessDueFollowUps(t *testing.T) {
	svc, db, clk := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	require.NoError(t, svc.HandleLeadStatusChange(lead, models.LeadStatusNewLead, models.LeadStatusFollowUps))

	// Nothing due yet.
	processed, err := svc.ProcessDueFollowUps()
	require.NoError(t, err)
	assert.Empty(t, processed)

	// The initial schedule comes due at +2d.
	clk.Advance(3 * day)
	processed, err = svc.ProcessDueFollowUps()
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, models.FollowUpTypeInitialEmail, processed[0].Type)
	assert.Equal(t, lead.ID, processed[0].LeadID)
	assert.Equal(t, "Acme Corp", processed[0].Company)
}

func TestProcessDueFollowUpsSkipsClosedLeads(t *testing.T) {
	svc, db, clk := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	require.NoError(t, svc.HandleLeadStatusChange(lead, models.LeadStatusNewLead, models.LeadStatusFollowUps))
	schedules, err := svc.ActiveFollowUps(lead.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	require.NoError(t, db.Model(&models.Lead{}).Where("id = ?", lead.ID).
		Update("status", models.LeadStatusLost).Error)

	clk.Advance(3 * day)
	processed, err := svc.ProcessDueFollowUps()
	require.NoError(t, err)
	assert.Empty(t, processed)

	// Discovering the closed lead garbage-collected all its schedules.
	for _, s := range schedules {
		settled := loadSchedule(t, db, s.ID)
		assert.Equal(t, models.FollowUpStatusCancelled, settled.Status)
		assert.NotNil(t, settled.CompletedAt)
	}
}

func TestProcessDueFollowUpsCreatesMissingTask(t *testing.T) {
	svc, db, clk := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	schedule, err := svc.ScheduleInitialFollowUp(lead, 1)
	require.NoError(t, err)

	// Simulate the linked task being deleted out from under the schedule.
	require.NoError(t, repository.NewTaskRepository(db).Delete(*schedule.TaskID))
	require.NoError(t, db.Model(&models.FollowUpSchedule{}).
		Where("id = ?", schedule.ID).
		Update("task_id", nil).Error)

	clk.Advance(3 * day)
	processed, err := svc.ProcessDueFollowUps()
	require.NoError(t, err)
	require.Len(t, processed, 1)

	repaired := loadSchedule(t, db, schedule.ID)
	require.NotNil(t, repaired.TaskID)
	task := loadTask(t, db, *repaired.TaskID)
	assert.True(t, task.DueDate.Equal(repaired.ScheduledAt))
	assert.Equal(t, schedule.Notes, task.Description)
}

func TestProcessDueFollowUpsReentrant(t *testing.T) {
	svc, db, clk := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	require.NoError(t, svc.HandleLeadStatusChange(lead, models.LeadStatusNewLead, models.LeadStatusFollowUps))

	clk.Advance(3 * day)
	first, err := svc.ProcessDueFollowUps()
	require.NoError(t, err)
	require.Len(t, first, 1)

	// No time advance, no new activity: same result.
	second, err := svc.ProcessDueFollowUps()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A human completes the linked task; the schedule must settle and
	// vanish from the next run.
	schedule := loadSchedule(t, db, first[0].ScheduleID)
	require.NotNil(t, schedule.TaskID)
	require.NoError(t, repository.NewTaskRepository(db).Complete(*schedule.TaskID, clk.Now()))

	third, err := svc.ProcessDueFollowUps()
	require.NoError(t, err)
	assert.Empty(t, third)

	settled := loadSchedule(t, db, schedule.ID)
	assert.Equal(t, models.FollowUpStatusCompleted, settled.Status)
}

func TestProcessDueFollowUpsToleratesStaleLeads(t *testing.T) {
	svc, db, clk := newTestService(t)
	stale := makeLead(t, db, models.LeadStatusFollowUps)
	healthy := makeLead(t, db, models.LeadStatusFollowUps)

	_, err := svc.ScheduleInitialFollowUp(stale, 1)
	require.NoError(t, err)
	_, err = svc.ScheduleInitialFollowUp(healthy, 1)
	require.NoError(t, err)

	// Drop the lead row out from under its schedule.
	require.NoError(t, db.Exec("DELETE FROM leads WHERE id = ?", stale.ID).Error)

	clk.Advance(3 * day)
	processed, err := svc.ProcessDueFollowUps()
	require.ErrorIs(t, err, ErrLeadNotFound)

	// The healthy lead was still processed.
	require.Len(t, processed, 1)
	assert.Equal(t, healthy.ID, processed[0].LeadID)
}

// Full lifecycle: new_lead -> follow_ups at T0, activity at T0+3d, due
// processing at T0+8d.
func TestFollowUpLifecycle(t *testing.T) {
	svc, db, clk := newTestService(t)
	t0 := clk.Now()
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	require.NoError(t, svc.HandleLeadStatusChange(lead, models.LeadStatusNewLead, models.LeadStatusFollowUps))

	schedules, err := svc.ActiveFollowUps(lead.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	scheduleA := schedules[0] // initial_email, due T0+2d
	scheduleB := schedules[1] // follow_up_email, due T0+7d
	require.Equal(t, models.FollowUpTypeInitialEmail, scheduleA.Type)
	require.Equal(t, models.FollowUpTypeFollowUpEmail, scheduleB.Type)
	assert.True(t, scheduleA.ScheduledAt.Equal(t0.Add(2*day)))
	assert.True(t, scheduleB.ScheduledAt.Equal(t0.Add(7*day)))
	assert.True(t, scheduleB.NextFollowUpDate.Equal(t0.Add(7*day)))
	assert.True(t, loadTask(t, db, *scheduleA.TaskID).DueDate.Equal(t0.Add(2*day)))
	assert.True(t, loadTask(t, db, *scheduleB.TaskID).DueDate.Equal(t0.Add(7*day)))

	// Activity at T0+3d settles A; B is not yet due and stays untouched.
	clk.Advance(3 * day)
	activity := &models.Activity{LeadID: lead.ID, UserID: 1, Type: models.ActivityTypeCall, ActivityDate: clk.Now()}
	require.NoError(t, db.Create(activity).Error)
	require.NoError(t, svc.MarkFollowUpCompleted(activity))

	settledA := loadSchedule(t, db, scheduleA.ID)
	assert.Equal(t, models.FollowUpStatusCompleted, settledA.Status)
	untouchedB := loadSchedule(t, db, scheduleB.ID)
	assert.Equal(t, models.FollowUpStatusActive, untouchedB.Status)
	assert.Nil(t, untouchedB.LastOccurrenceAt)
	assert.True(t, untouchedB.ScheduledAt.Equal(t0.Add(7*day)))

	// At T0+8d the recurring schedule is due and actionable.
	clk.Advance(5 * day)
	processed, err := svc.ProcessDueFollowUps()
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, scheduleB.ID, processed[0].ScheduleID)
	assert.Equal(t, models.FollowUpTypeFollowUpEmail, processed[0].Type)
}

func TestActingUserFallsBackToSystemUser(t *testing.T) {
	svc, db, _ := newTestService(t)

	lead := &models.Lead{
		Name:    "Unowned",
		Company: "Orphan Ltd",
		Status:  models.LeadStatusFollowUps,
	}
	require.NoError(t, db.Create(lead).Error)

	require.NoError(t, svc.HandleLeadStatusChange(lead, models.LeadStatusNewLead, models.LeadStatusFollowUps))

	schedules, err := svc.ActiveFollowUps(lead.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	for _, s := range schedules {
		task := loadTask(t, db, *s.TaskID)
		assert.EqualValues(t, 1, task.CreatedBy)
	}
}

func TestConcurrentSchedulingCreatesOneRow(t *testing.T) {
	svc, db, _ := newTestService(t)
	lead := makeLead(t, db, models.LeadStatusFollowUps)

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := svc.ScheduleInitialFollowUp(lead, 1)
			errs <- err
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-errs)
	}

	var count int64
	require.NoError(t, db.Model(&models.FollowUpSchedule{}).
		Where("lead_id = ? AND type = ? AND status = ?", lead.ID, models.FollowUpTypeInitialEmail, models.FollowUpStatusActive).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
