package models

import "time"

// Activity types.
const (
	ActivityTypeCall    = "call"
	ActivityTypeEmail   = "email"
	ActivityTypeMeeting = "meeting"
	ActivityTypeNote    = "note"
)

// Activity maps to the `activities` table: a logged record of actual contact
// with a lead.
type Activity struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	LeadID       uint      `gorm:"column:lead_id;index" json:"lead_id"`
	UserID       uint      `gorm:"column:user_id;index" json:"user_id"`
	Type         string    `gorm:"column:type;size:50;index" json:"type"`
	ActivityDate time.Time `gorm:"column:activity_date;index" json:"activity_date"`
	Description  string    `gorm:"column:description;type:text" json:"description"`
	Outcome      string    `gorm:"column:outcome;type:text" json:"outcome"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Activity) TableName() string {
	return "activities"
}
