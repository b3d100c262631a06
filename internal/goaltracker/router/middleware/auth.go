package middleware

import (
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/go-faster/errors"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenKey  = "token"
	userIDKey = "user_id"
)

// Protected accepts a HS256 token from the Authorization header or from the
// auth cookie and stores the caller's id for UserID.
func Protected(jwtSecret []byte, cookieName string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:     jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: jwtSecret},
		ContextKey:     tokenKey,
		TokenLookup:    "header:" + fiber.HeaderAuthorization + ",cookie:" + cookieName,
		AuthScheme:     "Bearer",
		SuccessHandler: storeUserID,
		ErrorHandler:   jwtError,
	})
}

// UserID returns the id of the authenticated caller, or "" outside Protected routes.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

func storeUserID(c *fiber.Ctx) error {
	token, ok := c.Locals(tokenKey).(*jwt.Token)
	if !ok {
		return unauthorized(c, "invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return unauthorized(c, "invalid token")
	}
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return unauthorized(c, "invalid token")
	}
	c.Locals(userIDKey, id)
	return c.Next()
}

func jwtError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, jwtware.ErrJWTMissingOrMalformed):
		return unauthorized(c, "authentication required")
	case errors.Is(err, jwt.ErrTokenExpired):
		return unauthorized(c, "token expired")
	default:
		return unauthorized(c, "invalid token")
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	c.Status(fiber.StatusUnauthorized)
	return c.JSON(types.Response{Success: false, Message: message, Error: "UNAUTHORIZED"})
}
