package models

import "time"

// Follow-up schedule types.
const (
	FollowUpTypeInitialEmail  = "initial_email"
	FollowUpTypeFollowUpEmail = "follow_up_email"
	FollowUpTypeCall          = "call"
)

// Follow-up schedule statuses. A recurring schedule stays active across
// occurrences; each settled occurrence only advances LastOccurrenceAt and
// ScheduledAt. Completed and cancelled are terminal.
const (
	FollowUpStatusActive    = "active"
	FollowUpStatusCompleted = "completed"
	FollowUpStatusCancelled = "cancelled"
)

// FollowUpSchedule maps to the `follow_up_schedules` table. It describes when
// the next contact attempt for a lead should occur, optionally on a recurring
// cadence. The schedule weakly references its current pending Task; the Lead
// owns both.
type FollowUpSchedule struct {
	ID               uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	LeadID           uint       `gorm:"column:lead_id;index" json:"lead_id"`
	TaskID           *uint      `gorm:"column:task_id;index" json:"task_id"`
	Type             string     `gorm:"column:type;size:50" json:"type"`
	Status           string     `gorm:"column:status;size:20;default:active;index" json:"status"`
	ScheduledAt      time.Time  `gorm:"column:scheduled_at;index" json:"scheduled_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at" json:"completed_at"`
	LastOccurrenceAt *time.Time `gorm:"column:last_occurrence_at" json:"last_occurrence_at"`
	IntervalDays     *int       `gorm:"column:interval_days" json:"interval_days"`
	IsRecurring      bool       `gorm:"column:is_recurring;default:false;index" json:"is_recurring"`
	NextFollowUpDate *time.Time `gorm:"column:next_follow_up_date;index" json:"next_follow_up_date"`
	Notes            string     `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt        time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (FollowUpSchedule) TableName() string {
	return "follow_up_schedules"
}

// IsActive reports whether the schedule still has pending work.
func (s *FollowUpSchedule) IsActive() bool {
	return s.Status == FollowUpStatusActive
}
