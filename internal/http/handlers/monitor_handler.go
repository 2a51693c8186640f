package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"ecosniper/internal/domain"
	"ecosniper/internal/monitor"
	"ecosniper/internal/store"
	"ecosniper/internal/validate"
)

type MonitorHandler struct {
	Monitor *monitor.Monitor
	Store   *store.Store
}

type subscribeRequest struct {
	PlanCode          string   `json:"planCode"`
	ServerName        string   `json:"serverName"`
	Datacenters       []string `json:"datacenters"`
	NotifyAvailable   *bool    `json:"notifyAvailable"`
	NotifyUnavailable *bool    `json:"notifyUnavailable"`
}

func (h *MonitorHandler) List(c *fiber.Ctx) error {
	return c.JSON(h.Monitor.List())
}

func (h *MonitorHandler) Subscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	plan, err := validate.PlanCode(req.PlanCode)
	if err != nil {
		return badInput(c, err)
	}
	dcs := make([]string, 0, len(req.Datacenters))
	for _, raw := range req.Datacenters {
		dc, err := validate.Datacenter(raw)
		if err != nil {
			return badInput(c, err)
		}
		dcs = append(dcs, dc)
	}

	sub := domain.Subscription{
		PlanCode:        plan,
		ServerName:      req.ServerName,
		Datacenters:     dcs,
		NotifyAvailable: true,
	}
	if req.NotifyAvailable != nil {
		sub.NotifyAvailable = *req.NotifyAvailable
	}
	if req.NotifyUnavailable != nil {
		sub.NotifyUnavailable = *req.NotifyUnavailable
	}

	saved, err := h.Monitor.Subscribe(sub)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(saved)
}

func (h *MonitorHandler) Unsubscribe(c *fiber.Ctx) error {
	if !h.Monitor.Unsubscribe(c.Params("plan")) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "subscription not found"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *MonitorHandler) Clear(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"removed": h.Monitor.Clear()})
}

func (h *MonitorHandler) History(c *fiber.Ctx) error {
	history, ok := h.Monitor.History(c.Params("plan"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "subscription not found"})
	}
	return c.JSON(history)
}

// Check polls one subscription immediately.
func (h *MonitorHandler) Check(c *fiber.Ctx) error {
	sub, ok := h.Monitor.CheckNow(c.Context(), c.Params("plan"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "subscription not found"})
	}
	return c.JSON(sub)
}

type intervalRequest struct {
	Seconds int `json:"seconds"`
}

// SetInterval changes the poll cadence and persists it across restarts.
func (h *MonitorHandler) SetInterval(c *fiber.Ctx) error {
	var req intervalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if req.Seconds <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "seconds must be positive"})
	}

	applied := h.Monitor.SetInterval(time.Duration(req.Seconds) * time.Second)
	if h.Store != nil {
		if err := h.Store.SaveSetting("monitor_interval", strconv.Itoa(int(applied/time.Second))); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"intervalSeconds": int(applied / time.Second)})
}

func (h *MonitorHandler) Start(c *fiber.Ctx) error {
	h.Monitor.SetRunning(true)
	return h.Status(c)
}

func (h *MonitorHandler) Stop(c *fiber.Ctx) error {
	h.Monitor.SetRunning(false)
	return h.Status(c)
}

func (h *MonitorHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"running":         h.Monitor.Running(),
		"subscriptions":   len(h.Monitor.List()),
		"intervalSeconds": int(h.Monitor.Interval() / time.Second),
	})
}
