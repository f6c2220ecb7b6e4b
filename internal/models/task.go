package models

import "time"

// Task statuses.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// Task types.
const (
	TaskTypeFollowUp = "follow_up"
	TaskTypeCall     = "call"
	TaskTypeEmail    = "email"
	TaskTypeMeeting  = "meeting"
	TaskTypeOther    = "other"
)

// Task priorities.
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// Task maps to the `tasks` table. A task may be the executable counterpart of
// a follow-up schedule occurrence (type follow_up); the task itself does not
// know about the schedule.
type Task struct {
	ID          uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	LeadID      *uint      `gorm:"column:lead_id;index" json:"lead_id"`
	CreatedBy   uint       `gorm:"column:created_by;index" json:"created_by"`
	Type        string     `gorm:"column:type;size:50;default:other" json:"type"`
	Title       string     `gorm:"column:title;size:255" json:"title"`
	Description string     `gorm:"column:description;type:text" json:"description"`
	DueDate     time.Time  `gorm:"column:due_date;index" json:"due_date"`
	CompletedAt *time.Time `gorm:"column:completed_at;index" json:"completed_at"`
	Priority    string     `gorm:"column:priority;size:20;default:medium;index" json:"priority"`
	Status      string     `gorm:"column:status;size:20;default:pending;index" json:"status"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

// IsOpen reports whether the task is still actionable.
func (t *Task) IsOpen() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusInProgress
}
