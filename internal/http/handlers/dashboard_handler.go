package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"ecosniper/internal/catalog"
	"ecosniper/internal/domain"
	"ecosniper/internal/monitor"
	"ecosniper/internal/queue"
	"ecosniper/internal/sniper"
)

type DashboardHandler struct {
	Registry *queue.Registry
	Engine   *sniper.Engine
	Monitor  *monitor.Monitor
	Cache    *catalog.Cache
}

// Home renders the status page.
func (h *DashboardHandler) Home(c *fiber.Ctx) error {
	tasks := h.Registry.List()
	var running int
	for _, t := range tasks {
		if t.Status == domain.TaskRunning {
			running++
		}
	}
	planCount, fetchedAt, _ := h.Cache.Info()

	catalogAge := "never fetched"
	if !fetchedAt.IsZero() {
		catalogAge = time.Since(fetchedAt).Round(time.Second).String() + " ago"
	}

	return c.Render("dashboard", fiber.Map{
		"QueueTasks":    tasks,
		"QueueRunning":  running,
		"SniperTasks":   h.Engine.List(),
		"Subscriptions": h.Monitor.List(),
		"CatalogPlans":  planCount,
		"CatalogAge":    catalogAge,
	})
}
