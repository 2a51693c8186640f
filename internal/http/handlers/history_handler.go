package handlers

import (
	"github.com/gofiber/fiber/v2"

	"ecosniper/internal/store"
)

type HistoryHandler struct {
	Store *store.Store
}

func (h *HistoryHandler) List(c *fiber.Ctx) error {
	outcomes, err := h.Store.LoadOutcomes()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(outcomes)
}

func (h *HistoryHandler) Clear(c *fiber.Ctx) error {
	if err := h.Store.ClearOutcomes(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}
