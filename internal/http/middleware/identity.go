package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"go.uber.org/zap"
)

const identityKey = "identity"

// IdentityClaims is the token payload issued by the authentication provider.
type IdentityClaims struct {
	Username    string   `json:"username"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Identity requires a valid HS256 bearer token and stores the caller as a
// model.Identity in the request locals.
func Identity(secret []byte, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(c, "missing bearer token")
		}

		var claims IdentityClaims
		_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil {
			if !errors.Is(err, jwt.ErrTokenExpired) {
				logger.Debug("rejected identity token", zap.Error(err))
			}
			return unauthorized(c, "invalid token")
		}

		username := claims.Username
		if username == "" {
			username = claims.Subject
		}
		if username == "" {
			return unauthorized(c, "token carries no username")
		}

		c.Locals(identityKey, model.Identity{Username: username, Permissions: claims.Permissions})
		return c.Next()
	}
}

// IdentityFrom returns the caller stored by Identity.
func IdentityFrom(c *fiber.Ctx) (model.Identity, bool) {
	ident, ok := c.Locals(identityKey).(model.Identity)
	return ident, ok
}

// IssueIdentityToken signs a token for ident that Identity accepts.
func IssueIdentityToken(secret []byte, ident model.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		Username:    ident.Username,
		Permissions: ident.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *fiber.Ctx, msg string) error {
	c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="linkpulse"`)
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
}
