package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"ecosniper/internal/sniper"
	"ecosniper/internal/validate"
)

type SniperHandler struct {
	Engine *sniper.Engine
}

type createSniperRequest struct {
	SourcePlanCode string `json:"sourcePlanCode"`
	Memory         string `json:"memory"`
	Storage        string `json:"storage"`
	WatchNewOnly   bool   `json:"watchNewOnly"`
}

func (h *SniperHandler) List(c *fiber.Ctx) error {
	return c.JSON(h.Engine.List())
}

func (h *SniperHandler) Create(c *fiber.Ctx) error {
	var req createSniperRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if req.SourcePlanCode != "" {
		plan, err := validate.PlanCode(req.SourcePlanCode)
		if err != nil {
			return badInput(c, err)
		}
		req.SourcePlanCode = plan
	}

	task, err := h.Engine.Create(c.Context(), sniper.CreateSpec{
		SourcePlanCode: req.SourcePlanCode,
		Memory:         strings.TrimSpace(strings.ToLower(req.Memory)),
		Storage:        strings.TrimSpace(strings.ToLower(req.Storage)),
		WatchNewOnly:   req.WatchNewOnly,
	})
	if err != nil {
		return badInput(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

func (h *SniperHandler) Delete(c *fiber.Ctx) error {
	if !h.Engine.Delete(c.Params("id")) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "sniper task not found"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *SniperHandler) Toggle(c *fiber.Ctx) error {
	task, ok := h.Engine.Toggle(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "sniper task not found"})
	}
	return c.JSON(task)
}

// Check runs one scan immediately instead of waiting for the cadence.
func (h *SniperHandler) Check(c *fiber.Ctx) error {
	task, ok := h.Engine.CheckNow(c.Context(), c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "sniper task not found"})
	}
	return c.JSON(task)
}
