package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "ecosniper/internal/log"
)

type LogsHandler struct{}

func (h *LogsHandler) List(c *fiber.Ctx) error {
	return c.JSON(applog.Recent())
}

func (h *LogsHandler) Clear(c *fiber.Ctx) error {
	applog.Clear()
	return c.JSON(fiber.Map{"ok": true})
}
