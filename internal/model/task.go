package model

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
)

// DefaultStatus is the status every newly created task starts in.
const DefaultStatus = StatusPending

// IsValid reports whether s is one of the enumerated task statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusStarted, StatusFinished:
		return true
	}
	return false
}

// Priority ranks a task from 1 (most urgent) to 3.
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
)

func (p Priority) IsValid() bool {
	return p >= PriorityHigh && p <= PriorityLow
}

// UserSummary is the slice of a user embedded in task listings.
type UserSummary struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	SecondName string `json:"second_name"`
}

type Task struct {
	ID           int64        `json:"id"`
	Title        string       `json:"header"`
	Description  string       `json:"description"`
	Priority     Priority     `json:"priority"`
	Status       Status       `json:"status"`
	EndDate      time.Time    `json:"end_date"`
	Author       int64        `json:"author"`
	AssignedUser int64        `json:"assigned_user_id"`
	Assignee     *UserSummary `json:"assigned_user,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TaskDraft holds the caller-supplied fields of a task. Create ignores Status
// and Author; a full update applies all of them.
type TaskDraft struct {
	Title        string
	Description  string
	Priority     Priority
	AssignedUser int64
	EndDate      time.Time
	Status       Status
	Author       int64
}
