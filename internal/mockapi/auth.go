package mockapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/mail-client/internal/model"
)

const userContextKey = "user"

type userRecord struct {
	model.User
	passwordHash []byte
}

// SeedUser registers a user directly, for development data and tests.
func (s *Server) SeedUser(reg model.Registration) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUser(reg)
}

// addUser creates a user. Callers hold mu.
func (s *Server) addUser(reg model.Registration) (model.User, error) {
	for _, u := range s.users {
		if u.Username == reg.Username {
			return model.User{}, echo.NewHTTPError(http.StatusBadRequest, "Username already registered")
		}
		if strings.EqualFold(u.Email, reg.Email) {
			return model.User{}, echo.NewHTTPError(http.StatusBadRequest, "Email already registered")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.MinCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hashing password: %w", err)
	}

	s.nextUserID++
	rec := &userRecord{
		User: model.User{
			ID:        s.nextUserID,
			Username:  reg.Username,
			Email:     reg.Email,
			FullName:  reg.FullName,
			IsActive:  true,
			CreatedAt: *s.timestamp(),
		},
		passwordHash: hash,
	}
	s.users[rec.ID] = rec
	return rec.User, nil
}

// register handles POST /auth/register
func (s *Server) register(c echo.Context) error {
	var req model.Registration
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var verr validationError
	if req.Username == "" {
		verr = append(verr, missing("body", "username"))
	}
	if req.Email == "" {
		verr = append(verr, missing("body", "email"))
	} else if !strings.Contains(req.Email, "@") {
		verr = append(verr, fieldError{
			Loc: []string{"body", "email"}, Msg: "value is not a valid email address", Type: "value_error.email",
		})
	}
	if req.Password == "" {
		verr = append(verr, missing("body", "password"))
	}
	if len(verr) > 0 {
		return verr
	}

	s.mu.Lock()
	user, err := s.addUser(req)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// login handles POST /auth/login. Like the real backend it returns only
// the token; clients resolve the user through /auth/me.
func (s *Server) login(c echo.Context) error {
	var req model.Credentials
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	s.mu.Lock()
	var found *userRecord
	for _, u := range s.users {
		if u.Username == req.Username {
			found = u
			break
		}
	}
	s.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.passwordHash, []byte(req.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
	}
	if !found.IsActive {
		return echo.NewHTTPError(http.StatusBadRequest, "Inactive user")
	}

	token, err := s.issueToken(found.Username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, model.LoginResponse{AccessToken: token, TokenType: "bearer"})
}

// logout handles POST /auth/logout
func (s *Server) logout(c echo.Context) error {
	return c.JSON(http.StatusOK, model.StatusMessage{Message: "Successfully logged out"})
}

// me handles GET /auth/me
func (s *Server) me(c echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c).User)
}

// refresh handles POST /auth/refresh
func (s *Server) refresh(c echo.Context) error {
	token, err := s.issueToken(currentUser(c).Username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, model.LoginResponse{AccessToken: token, TokenType: "bearer"})
}

// IssueToken returns a signed token for username, for tests that need an
// authenticated client without a login round trip.
func (s *Server) IssueToken(username string) (string, error) {
	return s.issueToken(username)
}

func (s *Server) issueToken(username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"exp": s.now().Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// verifyToken validates a token and returns its subject.
func (s *Server) verifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// requireUser authenticates the bearer token and stores the user in the
// request context.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		unauthorized := echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
		}

		username, err := s.verifyToken(raw)
		if err != nil {
			return unauthorized
		}

		s.mu.Lock()
		var found *userRecord
		for _, u := range s.users {
			if u.Username == username {
				found = u
				break
			}
		}
		s.mu.Unlock()
		if found == nil {
			return unauthorized
		}

		c.Set(userContextKey, found)
		return next(c)
	}
}

func currentUser(c echo.Context) *userRecord {
	return c.Get(userContextKey).(*userRecord)
}
