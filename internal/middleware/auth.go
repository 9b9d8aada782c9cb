// Package middleware provides authentication, logging, tracing, and rate
// limiting middleware for the HTTP adapter.
package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDLocal is the fiber.Ctx locals key holding the authenticated user ID.
const UserIDLocal = "userID"

var (
	errMissingHeader = errors.New("Authorization header required")
	errHeaderFormat  = errors.New("Invalid authorization header format")
	errInvalidToken  = errors.New("Invalid or expired token")
	errMissingSub    = errors.New("Invalid token structure - missing subject")
)

// Auth verifies HS256 bearer tokens whose "sub" claim carries the user ID.
type Auth struct {
	secret []byte
}

// NewAuth returns an Auth using the given signing secret.
func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// IssueToken signs a token for userID valid for ttl.
func (a *Auth) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Required rejects requests without a valid bearer token.
func (a *Auth) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := a.authenticate(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		c.Locals(UserIDLocal, userID)
		return c.Next()
	}
}

// Optional sets the user ID when a valid token is present and otherwise
// lets the request through anonymously.
func (a *Auth) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if header := c.Get("Authorization"); header != "" {
			if userID, err := a.authenticate(header); err == nil {
				c.Locals(UserIDLocal, userID)
			}
		}
		return c.Next()
	}
}

func (a *Auth) authenticate(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errHeaderFormat
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errMissingSub
	}
	return sub, nil
}

// UserID returns the authenticated user ID, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	if v, ok := c.Locals(UserIDLocal).(string); ok {
		return v
	}
	return ""
}
