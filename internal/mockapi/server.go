// Package mockapi is an in-memory implementation of the mail backend's
// HTTP API for development and tests. It fabricates mail; it never talks
// to an IMAP or SMTP server.
package mockapi

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nhle/mail-client/internal/model"
)

// Default settings.
const (
	defaultSecret   = "mockapi-development-secret"
	defaultTokenTTL = 30 * time.Minute

	// maxAvatarSize is the largest accepted avatar upload.
	maxAvatarSize = 5 << 20

	// maxListLimit is the largest page the email list accepts.
	maxListLimit = 100
)

// Server holds the mock backend state.
type Server struct {
	mu       sync.Mutex
	users    map[int64]*userRecord
	accounts map[int64]*accountRecord
	emails   map[int64]*model.Email
	synced   map[syncKey]bool

	nextUserID    int64
	nextAccountID int64
	nextEmailID   int64

	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithSecret sets the HMAC key used to sign tokens.
func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.tokenTTL = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger enables request logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns an empty Server.
func New(opts ...Option) *Server {
	s := &Server{
		users:    make(map[int64]*userRecord),
		accounts: make(map[int64]*accountRecord),
		emails:   make(map[int64]*model.Email),
		synced:   make(map[syncKey]bool),
		secret:   []byte(defaultSecret),
		tokenTTL: defaultTokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the echo router serving the API under /api/v1.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	if s.logger != nil {
		e.Use(requestLogger(s.logger))
	}

	v1 := e.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", s.register)
	auth.POST("/login", s.login)
	auth.POST("/logout", s.logout)
	auth.GET("/me", s.me, s.requireUser)
	auth.POST("/refresh", s.refresh, s.requireUser)

	accounts := v1.Group("/accounts", s.requireUser)
	accounts.GET("", s.listAccounts)
	accounts.GET("/", s.listAccounts)
	accounts.POST("", s.createAccount)
	accounts.POST("/", s.createAccount)
	accounts.GET("/:id", s.getAccount)
	accounts.PUT("/:id", s.updateAccount)
	accounts.DELETE("/:id", s.deleteAccount)
	accounts.POST("/:id/test", s.testAccount)
	accounts.POST("/:id/avatar", s.uploadAvatar)
	accounts.GET("/:id/folders", s.listFolders)

	emails := v1.Group("/emails", s.requireUser)
	emails.GET("", s.listEmails)
	emails.GET("/", s.listEmails)
	emails.POST("/compose", s.composeEmail)
	emails.POST("/search", s.searchEmails)
	emails.POST("/sync/:account_id", s.syncEmails)
	emails.GET("/:id", s.getEmail)
	emails.PUT("/:id", s.updateEmail)
	emails.DELETE("/:id", s.deleteEmail)

	return e
}

// detailBody is the error envelope: {"detail": string | []fieldError}.
type detailBody struct {
	Detail any `json:"detail"`
}

type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// validationError is returned by handlers for malformed input; it renders
// as a 422 with a list detail.
type validationError []fieldError

func (v validationError) Error() string {
	if len(v) == 0 {
		return "validation error"
	}
	return v[0].Msg
}

func missing(loc ...string) fieldError {
	return fieldError{Loc: loc, Msg: "field required", Type: "value_error.missing"}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		verr validationError
		herr *echo.HTTPError
	)
	switch {
	case errors.As(err, &verr):
		_ = c.JSON(http.StatusUnprocessableEntity, detailBody{Detail: []fieldError(verr)})
	case errors.As(err, &herr):
		detail := herr.Message
		if detail == nil {
			detail = http.StatusText(herr.Code)
		}
		if herr.Code == http.StatusUnauthorized {
			c.Response().Header().Set("WWW-Authenticate", "Bearer")
		}
		_ = c.JSON(herr.Code, detailBody{Detail: detail})
	default:
		if s.logger != nil {
			s.logger.Error("handler failed", "path", c.Path(), "error", err)
		}
		_ = c.JSON(http.StatusInternalServerError, detailBody{Detail: err.Error()})
	}
}

// requestLogger returns a middleware that logs HTTP requests
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			logger.Info("request",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", res.Status),
				slog.Duration("latency", time.Since(start)),
				slog.String("request_id", req.Header.Get("X-Request-ID")),
			)

			return nil
		}
	}
}

func (s *Server) timestamp() *model.Time {
	t := model.Time{Time: s.now().UTC()}
	return &t
}
