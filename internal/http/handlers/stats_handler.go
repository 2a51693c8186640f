package handlers

import (
	"github.com/gofiber/fiber/v2"

	"ecosniper/internal/domain"
	"ecosniper/internal/monitor"
	"ecosniper/internal/queue"
	"ecosniper/internal/sniper"
	"ecosniper/internal/store"
)

type StatsHandler struct {
	Registry *queue.Registry
	Engine   *sniper.Engine
	Monitor  *monitor.Monitor
	Store    *store.Store
}

// Overview aggregates counters for the dashboard and API consumers.
func (h *StatsHandler) Overview(c *fiber.Ctx) error {
	var running, paused int
	for _, t := range h.Registry.List() {
		switch t.Status {
		case domain.TaskRunning:
			running++
		case domain.TaskPaused:
			paused++
		}
	}

	var succeeded, failed int
	outcomes, err := h.Store.LoadOutcomes()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	for _, o := range outcomes {
		if o.Status == domain.OutcomeSuccess {
			succeeded++
		} else {
			failed++
		}
	}

	var activeSnipers int
	snipers := h.Engine.List()
	for _, s := range snipers {
		if s.Enabled && s.MatchStatus != domain.MatchCompleted {
			activeSnipers++
		}
	}

	return c.JSON(fiber.Map{
		"queue": fiber.Map{
			"running": running,
			"paused":  paused,
			"total":   running + paused,
		},
		"purchases": fiber.Map{
			"succeeded": succeeded,
			"failed":    failed,
		},
		"snipers": fiber.Map{
			"active": activeSnipers,
			"total":  len(snipers),
		},
		"subscriptions": len(h.Monitor.List()),
	})
}
