// Package server is the HTTP boundary of taskboard: it routes JSON requests
// through the auth guard into the task service.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/baiirun/taskboard/internal/auth"
	"github.com/baiirun/taskboard/internal/metrics"
	"github.com/baiirun/taskboard/internal/model"
	"github.com/baiirun/taskboard/internal/tasks"
)

// UserDirectory is the read side of the credential store.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

type Config struct {
	CookieName   string
	SecureCookie bool
	CORSOrigins  []string
	MaxBodyBytes int64
}

type Deps struct {
	Guard         *auth.Guard
	Authenticator *auth.Authenticator
	Users         UserDirectory
	Tasks         *tasks.Service
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

type Server struct {
	echo    *echo.Echo
	cfg     Config
	guard   *auth.Guard
	authn   *auth.Authenticator
	users   UserDirectory
	tasks   *tasks.Service
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(cfg Config, deps Deps) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = "token"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		echo:    echo.New(),
		cfg:     cfg,
		guard:   deps.Guard,
		authn:   deps.Authenticator,
		users:   deps.Users,
		tasks:   deps.Tasks,
		metrics: m,
		logger:  logger,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.observeDuration)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				if v.Status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
			}
			logger.LogAttrs(c.Request().Context(), level, "HTTP request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     corsOrigins(cfg.CORSOrigins),
		AllowCredentials: len(cfg.CORSOrigins) > 0,
	}))
	e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.MaxBodyBytes, 10) + "B"))

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	// Public routes
	e.POST("/login", s.handleLogin)
	e.GET("/authorization", s.handleAuthorization)
	e.GET("/logout", s.handleLogout)
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	// Any authenticated user
	e.GET("/usersList", s.handleUsersList, s.requireIdentity)
	e.GET("/gettasks", s.handleGetTasks, s.requireIdentity)
	e.PUT("/updatetask/:id", s.handleUpdateTask, s.requireIdentity)

	// Admins only
	e.POST("/createtask", s.handleCreateTask, s.requireIdentity, s.requireAdmin)
	e.DELETE("/updatetask/:id", s.handleDeleteTask, s.requireIdentity, s.requireAdmin)
}

// ServeHTTP makes the server usable as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("API listening", slog.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) observeDuration(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		// The request logger below has already run the error handler, so
		// the response status is final here.
		err := next(c)
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPDuration.
			WithLabelValues(c.Request().Method, route, strconv.Itoa(c.Response().Status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
