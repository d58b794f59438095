package api

import (
	"strconv"
	"time"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/example/realtime-chat/metrics"
	"github.com/example/realtime-chat/modules/auth"
)

const (
	jwtContextKey = "jwt"
	userIDKey     = "user_id"
)

// loggerMiddleware logs each request and records request metrics.
func (m *APIModule) loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		status := c.Response().StatusCode()
		path := c.Route().Path
		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Method(), path).Observe(duration.Seconds())

		m.logger.Debug("HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", duration.String(),
		)
		return err
	}
}

// jwtProtected validates the bearer token and stores the caller's user id
// under userIDKey. Browsers cannot set headers on a websocket handshake, so
// the token may also come from the token query parameter.
func (m *APIModule) jwtProtected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:  jwtware.SigningKey{Key: []byte(m.cfg.JWT.Secret)},
		ContextKey:  jwtContextKey,
		TokenLookup: "header:Authorization,query:token",
		AuthScheme:  "Bearer",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			m.logger.Debug("Rejected token", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		},
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals(jwtContextKey).(*jwt.Token)
			if !ok {
				return fiber.ErrUnauthorized
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return fiber.ErrUnauthorized
			}
			userID, _ := claims[auth.ClaimUserID].(string)
			if userID == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
					Error:   "unauthorized",
					Message: "Token carries no user",
				})
			}
			c.Locals(userIDKey, userID)
			return c.Next()
		},
	})
}

// currentUser returns the authenticated user id set by jwtProtected.
func currentUser(c *fiber.Ctx) string {
	userID, _ := c.Locals(userIDKey).(string)
	return userID
}
