package models

import (
	"time"
)

// Lead pipeline statuses.
const (
	LeadStatusNewLead         = "new_lead"
	LeadStatusInitialOutreach = "initial_outreach"
	LeadStatusFollowUps       = "follow_ups"
	LeadStatusNegotiations    = "negotiations"
	LeadStatusWon             = "won"
	LeadStatusLost            = "lost"
)

// ValidLeadStatuses is the full pipeline vocabulary accepted by status updates.
var ValidLeadStatuses = []string{
	LeadStatusNewLead,
	LeadStatusInitialOutreach,
	LeadStatusFollowUps,
	LeadStatusNegotiations,
	LeadStatusWon,
	LeadStatusLost,
}

// Lead maps to the `leads` table. A lead is a prospect or client record moving
// through the sales pipeline; won leads become clients.
type Lead struct {
	ID               uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ContactType      string     `gorm:"column:contact_type;size:50;default:person" json:"contact_type"`
	Name             string     `gorm:"column:name;size:255" json:"name"`
	Position         string     `gorm:"column:position;size:255" json:"position"`
	Company          string     `gorm:"column:company;size:255" json:"company"`
	Email            string     `gorm:"column:email;size:255" json:"email"`
	Phone            string     `gorm:"column:phone;size:50" json:"phone"`
	City             string     `gorm:"column:city;size:255" json:"city"`
	Country          string     `gorm:"column:country;size:255" json:"country"`
	Source           string     `gorm:"column:source;size:255" json:"source"`
	Sector           string     `gorm:"column:sector;size:255" json:"sector"`
	AddedBy          *uint      `gorm:"column:added_by;index" json:"added_by"`
	Status           string     `gorm:"column:status;size:50;default:new_lead;index" json:"status"`
	Value            float64    `gorm:"column:value;type:decimal(12,2);default:0" json:"value"`
	ExpectedCloseAt  *time.Time `gorm:"column:expected_close_date" json:"expected_close_date"`
	ActualCloseAt    *time.Time `gorm:"column:actual_close_date" json:"actual_close_date"`
	LostReason       string     `gorm:"column:lost_reason;type:text" json:"lost_reason"`
	WonAt            *time.Time `gorm:"column:won_at" json:"won_at"`
	IsClient         bool       `gorm:"column:is_client;default:false" json:"is_client"`
	Notes            string     `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt        time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at" json:"updated_at"`

	Tasks             []Task             `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
	Activities        []Activity         `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE" json:"activities,omitempty"`
	FollowUpSchedules []FollowUpSchedule `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE" json:"follow_up_schedules,omitempty"`
}

func (Lead) TableName() string {
	return "leads"
}

// IsClosed reports whether the deal reached a terminal pipeline stage.
func (l *Lead) IsClosed() bool {
	return l.Status == LeadStatusWon || l.Status == LeadStatusLost
}

// IsValidLeadStatus reports whether s is part of the pipeline vocabulary.
func IsValidLeadStatus(s string) bool {
	for _, v := range ValidLeadStatuses {
		if v == s {
			return true
		}
	}
	return false
}
