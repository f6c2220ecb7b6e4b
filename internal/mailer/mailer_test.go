package mailer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/internal/models"
)

func TestTaskReminder(t *testing.T) {
	task := &models.Task{
		Title:       "Follow-up: Acme Corp",
		Description: "Initial follow-up email for Acme Corp.",
		DueDate:     time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		Priority:    models.TaskPriorityMedium,
	}

	assert.Equal(t, "Task due soon: Follow-up: Acme Corp", TaskReminderSubject(task, false))
	assert.Equal(t, "Overdue task: Follow-up: Acme Corp", TaskReminderSubject(task, true))

	body, err := TaskReminderBody(task, "Dana", false)
	require.NoError(t, err)
	assert.Contains(t, body, "Hi Dana,")
	assert.Contains(t, body, "due soon")
	assert.Contains(t, body, "Follow-up: Acme Corp")
	assert.Contains(t, body, "Initial follow-up email for Acme Corp.")

	overdue, err := TaskReminderBody(task, "Dana", true)
	require.NoError(t, err)
	assert.Contains(t, overdue, "overdue")
}

func TestFollowUpReminder(t *testing.T) {
	lead := &models.Lead{
		Name:    "Dana Reyes",
		Company: "Acme Corp",
		Email:   "dana@acme.example",
	}
	schedule := &models.FollowUpSchedule{
		ScheduledAt: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
		Notes:       "Recurring follow-up scheduled every 7 days until deal is closed",
	}

	assert.Equal(t, "Follow-up due: Acme Corp", FollowUpReminderSubject(lead))

	body, err := FollowUpReminderBody(lead, schedule, "Sam")
	require.NoError(t, err)
	assert.Contains(t, body, "Hi Sam,")
	assert.Contains(t, body, "Acme Corp")
	assert.Contains(t, body, "Dana Reyes (dana@acme.example)")
	assert.Contains(t, body, "every 7 days")
}

func TestFollowUpReminderOmitsEmptyEmail(t *testing.T) {
	lead := &models.Lead{Name: "Dana Reyes", Company: "Acme Corp"}
	schedule := &models.FollowUpSchedule{ScheduledAt: time.Now()}

	body, err := FollowUpReminderBody(lead, schedule, "Sam")
	require.NoError(t, err)
	assert.Contains(t, body, "Dana Reyes")
	assert.NotContains(t, body, "()")
}
