package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type statusCoder interface {
	StatusCode() int
}

type errorCoder interface {
	ErrorCode() string
}

// ErrorHandler renders every error as {"error","code"}. Errors may carry
// their own status and code; fiber errors map their status to a code.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := http.StatusInternalServerError
		code := "INTERNAL"
		msg := err.Error()

		var sc statusCoder
		var fe *fiber.Error
		switch {
		case errors.As(err, &sc):
			status = sc.StatusCode()
		case errors.As(err, &fe):
			status = fe.Code
			msg = fe.Message
		}
		var ec errorCoder
		if errors.As(err, &ec) {
			code = ec.ErrorCode()
		} else if status != http.StatusInternalServerError {
			code = strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
		}

		if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
			logger.Error("request failed",
				slog.String("path", c.Path()),
				slog.String("request_id", RequestIDFrom(c)),
				slog.Any("error", err),
			)
			if code == "INTERNAL" {
				msg = "internal error"
			}
		}
		return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
	}
}
