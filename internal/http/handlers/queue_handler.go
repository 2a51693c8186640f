package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"ecosniper/internal/domain"
	"ecosniper/internal/queue"
	"ecosniper/internal/validate"
)

type QueueHandler struct {
	Registry *queue.Registry
}

type addTaskRequest struct {
	PlanCode      string   `json:"planCode"`
	Datacenter    string   `json:"datacenter"`
	Options       []string `json:"options"`
	RetryInterval int      `json:"retryInterval"`
	MaxRetries    int      `json:"maxRetries"`
}

func (h *QueueHandler) List(c *fiber.Ctx) error {
	return c.JSON(h.Registry.List())
}

func (h *QueueHandler) Add(c *fiber.Ctx) error {
	var req addTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}

	plan, err := validate.PlanCode(req.PlanCode)
	if err != nil {
		return badInput(c, err)
	}
	dc, err := validate.Datacenter(req.Datacenter)
	if err != nil {
		return badInput(c, err)
	}
	opts, err := validate.Options(req.Options)
	if err != nil {
		return badInput(c, err)
	}
	if req.MaxRetries < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "maxRetries must be >= 0"})
	}

	task, err := h.Registry.Enqueue(domain.QueueTask{
		PlanCode:      plan,
		Datacenter:    dc,
		Options:       opts,
		RetryInterval: validate.RetryInterval(req.RetryInterval),
		MaxRetries:    req.MaxRetries,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

func (h *QueueHandler) Delete(c *fiber.Ctx) error {
	if !h.Registry.Cancel(c.Params("id")) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "task not found"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *QueueHandler) Clear(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"removed": h.Registry.CancelAll()})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *QueueHandler) SetStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if req.Status != domain.TaskRunning && req.Status != domain.TaskPaused {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be running or paused"})
	}
	if !h.Registry.SetStatus(c.Params("id"), req.Status) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "task not found"})
	}
	task, _ := h.Registry.Get(c.Params("id"))
	return c.JSON(task)
}

// badInput maps validation failures to 400 and anything else to 500.
func badInput(c *fiber.Ctx, err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ve.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
