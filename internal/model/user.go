package model

import "time"

// Role is the closed set of access levels a user can hold.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	}
	return false
}

// IsAdmin reports whether the role grants full task management.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleUser:
		return false
	}
	return false
}

type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	SecondName   string    `json:"second_name"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary returns the fields embedded alongside tasks.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, FirstName: u.FirstName, SecondName: u.SecondName}
}
