package models

import "time"

// Organizational roles.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleTeamMember = "team_member"
)

// User maps to the `users` table.
type User struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;size:255" json:"name"`
	Email     string    `gorm:"column:email;size:255;uniqueIndex" json:"email"`
	Password  string    `gorm:"column:password;size:255" json:"-"`
	Role      string    `gorm:"column:role;size:20;default:team_member" json:"role"`
	ManagerID *uint     `gorm:"column:manager_id" json:"manager_id"`
	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
