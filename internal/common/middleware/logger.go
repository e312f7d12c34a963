package middleware

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// ============================================================
// Logger Middleware
// ============================================================

// Logger пишет в w строку на запрос. Размер ответа важен для экспорта IFC,
// запросы /health/* не логируются.
func Logger(w io.Writer) fiber.Handler {
	return logger.New(logger.Config{
		Stream:     w,
		Format:     "[${time}] ${status} - ${latency} ${method} ${path} | ${reqHeader:Content-Type} | ${bytesSent}B\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
		Skip: func(c fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/health/")
		},
	})
}
