package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"ecosniper/internal/catalog"
	"ecosniper/internal/validate"
)

type CatalogHandler struct {
	Cache *catalog.Cache
	Avail AvailabilitySource
}

type planSummary struct {
	PlanCode    string `json:"planCode"`
	InvoiceName string `json:"invoiceName"`
	Description string `json:"description,omitempty"`
}

// List serves the cached catalog as a browsable plan list.
func (h *CatalogHandler) List(c *fiber.Ctx) error {
	plans, err := h.Cache.Plans(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	out := make([]planSummary, 0, len(plans))
	for _, p := range plans {
		out = append(out, planSummary{PlanCode: p.PlanCode, InvoiceName: p.InvoiceName, Description: p.Description})
	}
	return c.JSON(out)
}

// Plan serves one cached plan with its full addon families.
func (h *CatalogHandler) Plan(c *fiber.Ctx) error {
	plan, err := validate.PlanCode(c.Params("plan"))
	if err != nil {
		return badInput(c, err)
	}
	p, ok, err := h.Cache.Plan(c.Context(), plan)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "plan not in catalog"})
	}
	return c.JSON(p)
}

func (h *CatalogHandler) Info(c *fiber.Ctx) error {
	count, fetchedAt, ttl := h.Cache.Info()
	resp := fiber.Map{
		"plans":      count,
		"ttlSeconds": int(ttl / time.Second),
	}
	if !fetchedAt.IsZero() {
		resp["fetchedAt"] = fetchedAt.UTC().Format(time.RFC3339)
	}
	return c.JSON(resp)
}

func (h *CatalogHandler) Refresh(c *fiber.Ctx) error {
	if err := h.Cache.Refresh(c.Context()); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	count, fetchedAt, _ := h.Cache.Info()
	return c.JSON(fiber.Map{"plans": count, "fetchedAt": fetchedAt.UTC().Format(time.RFC3339)})
}

// Availability proxies a live per-plan availability query.
func (h *CatalogHandler) Availability(c *fiber.Ctx) error {
	plan, err := validate.PlanCode(c.Query("planCode"))
	if err != nil {
		return badInput(c, err)
	}
	if h.Avail == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "vendor API not configured"})
	}
	configs, err := h.Avail.Availabilities(c.Context(), plan)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(configs)
}
