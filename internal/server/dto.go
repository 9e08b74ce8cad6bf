package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/baiirun/taskboard/internal/model"
	"github.com/baiirun/taskboard/internal/tasks"
)

// LoginDTO for user authentication
type LoginDTO struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// TaskDTO for creating and updating tasks. Form clients post numbers as
// strings, so numeric fields accept either.
type TaskDTO struct {
	Header       string  `json:"header"`
	Description  string  `json:"description"`
	Priority     flexInt `json:"priority"`
	AssignedUser flexInt `json:"assignedUser"`
	EndDate      string  `json:"endDate"`
	Author       flexInt `json:"author"`
	Status       string  `json:"status"`
}

// StatusDTO is the part of an update payload a non-admin may change.
type StatusDTO struct {
	Status string `json:"status"`
}

// StatusResponse is the {status, message} envelope used by most endpoints.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// AuthorizationResponse answers GET /authorization.
type AuthorizationResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	User    *PublicUser `json:"user"`
}

// PublicUser is a user without credentials.
type PublicUser struct {
	ID         int64      `json:"id"`
	FirstName  string     `json:"first_name"`
	SecondName string     `json:"second_name"`
	Login      string     `json:"login"`
	Role       model.Role `json:"role,omitempty"`
}

func publicUser(u *model.User, withRole bool) PublicUser {
	p := PublicUser{ID: u.ID, FirstName: u.FirstName, SecondName: u.SecondName, Login: u.Login}
	if withRole {
		p.Role = u.Role
	}
	return p
}

// endDateLayouts are tried in order; the last two carry no zone and are read as UTC.
var endDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseEndDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range endDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &tasks.ValidationError{Field: "endDate", Reason: fmt.Sprintf("cannot parse %q", s)}
}

// Draft converts the request into a task draft.
func (d TaskDTO) Draft() (model.TaskDraft, error) {
	end, err := parseEndDate(d.EndDate)
	if err != nil {
		return model.TaskDraft{}, err
	}
	return model.TaskDraft{
		Title:        d.Header,
		Description:  d.Description,
		Priority:     model.Priority(d.Priority),
		AssignedUser: int64(d.AssignedUser),
		EndDate:      end,
		Status:       model.Status(d.Status),
		Author:       int64(d.Author),
	}, nil
}

// flexInt decodes a JSON number, a numeric string, "" or null.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("%q is not an integer", s)
		}
		*f = flexInt(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
