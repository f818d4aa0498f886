package middleware

import (
	"io"
	"os"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// ============================================================
// Logger Middleware
// ============================================================

const accessFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} | ${ip} ${error}\n"

// Logger пишет строку доступа на каждый запрос в stdout.
// Запросы с путями из skip (по префиксу) не логируются.
func Logger(skip ...string) fiber.Handler {
	return LoggerTo(os.Stdout, skip...)
}

// LoggerTo то же, что Logger, но пишет в out.
func LoggerTo(out io.Writer, skip ...string) fiber.Handler {
	return logger.New(logger.Config{
		Next: func(c fiber.Ctx) bool {
			for _, prefix := range skip {
				if strings.HasPrefix(c.Path(), prefix) {
					return true
				}
			}
			return false
		},
		Format:     accessFormat,
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
		Stream:     out,
	})
}
