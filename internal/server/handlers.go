package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/baiirun/taskboard/internal/auth"
	"github.com/baiirun/taskboard/internal/db"
	"github.com/baiirun/taskboard/internal/metrics"
	"github.com/baiirun/taskboard/internal/model"
	"github.com/baiirun/taskboard/internal/tasks"
)

// requireIdentity verifies the session cookie and stores the caller's
// identity on the request context.
func (s *Server) requireIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := s.guard.Authenticate(s.token(c))
		if err != nil {
			s.metrics.AuthDecisions.WithLabelValues(metrics.OutcomeUnauthorized).Inc()
			s.logger.Debug("Rejected unauthenticated request", slog.String("path", c.Path()), slog.String("error", err.Error()))
			return err
		}
		s.metrics.AuthDecisions.WithLabelValues(metrics.OutcomeOK).Inc()
		ctx := auth.WithIdentity(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// requireAdmin must run after requireIdentity.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, _ := auth.IdentityFrom(c.Request().Context())
		if err := s.guard.AuthorizeAdminOnly(id); err != nil {
			s.metrics.AuthDecisions.WithLabelValues(metrics.OutcomeForbidden).Inc()
			s.logger.Debug("Rejected non-admin request",
				slog.String("path", c.Path()), slog.Int64("user_id", id.UserID), slog.String("role", string(id.Role)))
			return err
		}
		return next(c)
	}
}

func (s *Server) token(c echo.Context) string {
	cookie, err := c.Cookie(s.cfg.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// handleLogin verifies credentials and sets the session cookie.
func (s *Server) handleLogin(c echo.Context) error {
	var creds LoginDTO
	if err := c.Bind(&creds); err != nil {
		return err
	}

	token, user, err := s.authn.Login(c.Request().Context(), creds.Login, creds.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.metrics.Logins.WithLabelValues("failure").Inc()
		return c.JSON(http.StatusUnauthorized, StatusResponse{Status: "error", Message: err.Error()})
	}
	if err != nil {
		return err
	}

	s.metrics.Logins.WithLabelValues("success").Inc()
	s.logger.Info("User logged in", slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))
	c.SetCookie(s.sessionCookie(token, 0))
	return c.JSON(http.StatusOK, StatusResponse{Status: "success", Message: token})
}

// handleAuthorization reports who the session cookie belongs to.
func (s *Server) handleAuthorization(c echo.Context) error {
	unauthorized := func(msg string) error {
		s.metrics.AuthDecisions.WithLabelValues(metrics.OutcomeUnauthorized).Inc()
		return c.JSON(http.StatusUnauthorized, AuthorizationResponse{Status: "error", Message: msg})
	}

	id, err := s.guard.Authenticate(s.token(c))
	if err != nil {
		return unauthorized("invalid token")
	}
	user, err := s.users.GetUser(c.Request().Context(), id.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return unauthorized("user no longer exists")
	}
	if err != nil {
		return err
	}

	s.metrics.AuthDecisions.WithLabelValues(metrics.OutcomeOK).Inc()
	pu := publicUser(user, true)
	// The token is authoritative for the role.
	pu.Role = id.Role
	return c.JSON(http.StatusOK, AuthorizationResponse{Status: "success", Message: "authorized", User: &pu})
}

// handleLogout clears the session cookie.
func (s *Server) handleLogout(c echo.Context) error {
	c.SetCookie(s.sessionCookie("", -1))
	return c.JSON(http.StatusOK, StatusResponse{Status: "success", Message: "logged out"})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// handleUsersList returns every user for assignee pickers.
func (s *Server) handleUsersList(c echo.Context) error {
	users, err := s.users.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]PublicUser, 0, len(users))
	for i := range users {
		out = append(out, publicUser(&users[i], false))
	}
	return c.JSON(http.StatusOK, out)
}

// handleGetTasks lists tasks in creation order.
func (s *Server) handleGetTasks(c echo.Context) error {
	list, err := s.tasks.ListAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// handleCreateTask creates a task authored by the calling admin.
func (s *Server) handleCreateTask(c echo.Context) error {
	caller, _ := auth.IdentityFrom(c.Request().Context())

	var dto TaskDTO
	if err := c.Bind(&dto); err != nil {
		return err
	}
	draft, err := dto.Draft()
	if err != nil {
		return s.recordMutation("create", err)
	}

	task, err := s.tasks.Create(c.Request().Context(), draft, caller.UserID)
	if err := s.recordMutation("create", err); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// handleUpdateTask applies a full update for admins and a status-only update
// for everyone else.
func (s *Server) handleUpdateTask(c echo.Context) error {
	caller, _ := auth.IdentityFrom(c.Request().Context())
	id, err := taskID(c)
	if err != nil {
		return err
	}

	op := "update_status"
	var draft model.TaskDraft
	if caller.Role.IsAdmin() {
		op = "update_full"
		var dto TaskDTO
		if err := c.Bind(&dto); err != nil {
			return err
		}
		if draft, err = dto.Draft(); err != nil {
			return s.recordMutation(op, err)
		}
	} else {
		// Only the status is read from a non-admin payload.
		var dto StatusDTO
		if err := c.Bind(&dto); err != nil {
			return err
		}
		draft = model.TaskDraft{Status: model.Status(dto.Status)}
	}

	task, err := s.tasks.Update(c.Request().Context(), caller, id, draft)
	if err := s.recordMutation(op, err); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// handleDeleteTask removes a task.
func (s *Server) handleDeleteTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}
	err = s.tasks.Delete(c.Request().Context(), id)
	if err := s.recordMutation("delete", err); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "success"})
}

func (s *Server) recordMutation(op string, err error) error {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, tasks.ErrNotFound):
		result = "not_found"
	case errors.Is(err, tasks.ErrInvalidStatus):
		result = "invalid_status"
	case isValidation(err):
		result = "invalid"
	default:
		result = "error"
	}
	s.metrics.TaskMutations.WithLabelValues(op, result).Inc()
	return err
}

func taskID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}
	return id, nil
}

func isValidation(err error) bool {
	var verr *tasks.ValidationError
	return errors.As(err, &verr)
}
