package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
)

// Logging writes one key=value line per request, correlated with the
// request id so API lines can be matched against worker job logs.
func Logging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			rid, _ := c.Get(ContextKeyRequestID).(string)
			if rid == "" {
				rid = "-"
			}
			log.Printf("request_id=%s method=%s path=%s status=%d bytes=%d latency=%s",
				rid, c.Request().Method, c.Request().URL.Path, c.Response().Status, c.Response().Size, latency)

			return err
		}
	}
}
