package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AccessLog logs one line per request. The query string is left out since it carries subscription URLs.
func AccessLog(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		entry := log.WithFields(logrus.Fields{
			"method":   c.Method(),
			"path":     c.Path(),
			"status":   status,
			"duration": time.Since(start).Round(time.Microsecond),
			"ip":       c.IP(),
		})
		switch {
		case err != nil || status >= 500:
			entry.WithError(err).Warn("request")
		default:
			entry.Debug("request")
		}
		return err
	}
}
