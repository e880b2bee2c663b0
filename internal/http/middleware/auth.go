package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// OwnerIDLocalKey is the key under which the verified owner id is stored
// in Fiber's context locals.
const OwnerIDLocalKey = "owner_id"

// OwnerIDFromCtx returns the authenticated owner id set by Auth, or ""
// when the request was not authenticated.
func OwnerIDFromCtx(c *fiber.Ctx) string {
	if v, ok := c.Locals(OwnerIDLocalKey).(string); ok {
		return v
	}
	return ""
}

// Auth validates the Authorization bearer token with an HMAC secret and
// stores the token subject as the owner id for downstream handlers.
// Requests without a valid token and subject never reach the handler.
func Auth(secret string) fiber.Handler {
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		tokenString, err := extractBearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		if claims.Subject == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing subject")
		}

		c.Locals(OwnerIDLocalKey, claims.Subject)

		return c.Next()
	}
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}
