package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"chartevo/internal/logging"
)

func recoverMiddleware(log *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("handler panic",
						logging.String("path", c.Path()),
						logging.String("panic", fmt.Sprint(r)),
					)
					err = respond(c, http.StatusInternalServerError, nil)
				}
			}()
			return next(c)
		}
	}
}

func requestLogging(log *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			req := c.Request()
			log.Debug("request",
				logging.String("method", req.Method),
				logging.String("uri", req.RequestURI),
				logging.Int("status", c.Response().Status),
				logging.Duration("latency", time.Since(start)),
			)
			return err
		}
	}
}
