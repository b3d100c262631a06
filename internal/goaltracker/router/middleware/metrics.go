package middleware

import (
	"time"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/metrics"
	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"
)

// Metrics records the count and latency of every request by matched route.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			}
		}
		route := ""
		if r := c.Route(); r != nil && r.Path != "/" {
			route = r.Path
		}
		metrics.ObserveHTTP(c.Method(), route, status, time.Since(start))
		return err
	}
}
