// Package handlers is the HTTP control surface: queue and sniper task
// management, availability subscriptions, catalog browsing, settings
// and a status dashboard.
package handlers

import (
	"context"

	"ecosniper/internal/catalog"
	"ecosniper/internal/config"
	"ecosniper/internal/monitor"
	"ecosniper/internal/notify"
	"ecosniper/internal/ovhapi"
	"ecosniper/internal/queue"
	"ecosniper/internal/sniper"
	"ecosniper/internal/store"
)

// AvailabilitySource is the vendor read surface for the proxy endpoint.
type AvailabilitySource interface {
	Availabilities(ctx context.Context, planCode string) ([]ovhapi.ConfigAvailability, error)
}

type Deps struct {
	Queue     *QueueHandler
	History   *HistoryHandler
	Sniper    *SniperHandler
	Monitor   *MonitorHandler
	Catalog   *CatalogHandler
	Settings  *SettingsHandler
	Logs      *LogsHandler
	Stats     *StatsHandler
	Dashboard *DashboardHandler
}

func NewDeps(
	cfg config.Config,
	reg *queue.Registry,
	engine *sniper.Engine,
	mon *monitor.Monitor,
	cache *catalog.Cache,
	st *store.Store,
	avail AvailabilitySource,
	notifier *notify.Telegram,
) *Deps {
	return &Deps{
		Queue:     &QueueHandler{Registry: reg},
		History:   &HistoryHandler{Store: st},
		Sniper:    &SniperHandler{Engine: engine},
		Monitor:   &MonitorHandler{Monitor: mon, Store: st},
		Catalog:   &CatalogHandler{Cache: cache, Avail: avail},
		Settings:  &SettingsHandler{Store: st, Notifier: notifier},
		Logs:      &LogsHandler{},
		Stats:     &StatsHandler{Registry: reg, Engine: engine, Monitor: mon, Store: st},
		Dashboard: &DashboardHandler{Registry: reg, Engine: engine, Monitor: mon, Cache: cache},
	}
}
