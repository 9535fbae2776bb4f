package http

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	RoleOperator = "operator"
	RoleFarmer   = "farmer"

	// ActorIDKey is the echo context key holding the token subject.
	ActorIDKey = "actor_id"
	ctxRole    = "actor_role"
)

// Claims identify who acts on an advance; the subject becomes the history actor id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth verifies an HS256 bearer token and stores the actor on the echo context.
func Auth(secret []byte, issuer string) echo.MiddlewareFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, found := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			if !found || raw == "" {
				return unauthorized(c, "missing bearer token")
			}
			var claims Claims
			_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return secret, nil })
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return unauthorized(c, "token expired")
				}
				return unauthorized(c, "invalid token")
			}
			if claims.Subject == "" {
				return unauthorized(c, "token has no subject")
			}
			c.Set(ActorIDKey, claims.Subject)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}

// RequireRole rejects actors whose token carries none of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !slices.Contains(roles, actorRole(c)) {
				return c.JSON(http.StatusForbidden, Result{Error: &ErrorBody{Code: "Forbidden", Message: "role not allowed"}})
			}
			return next(c)
		}
	}
}

// IssueToken signs a token for subject; used by ops tooling and tests.
func IssueToken(secret []byte, issuer, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func actorID(c echo.Context) string {
	s, _ := c.Get(ActorIDKey).(string)
	return s
}

func actorRole(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, Result{Error: &ErrorBody{Code: "Unauthorized", Message: msg}})
}
