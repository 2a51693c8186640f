package handlers_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"ecosniper/internal/domain"
	"ecosniper/internal/http/handlers"
	"ecosniper/internal/monitor"
	"ecosniper/internal/ovhapi"
	"ecosniper/internal/store"
)

type staticAvail struct{}

func (staticAvail) Availabilities(context.Context, string) ([]ovhapi.ConfigAvailability, error) {
	return []ovhapi.ConfigAvailability{{
		Datacenters: []ovhapi.DatacenterAvailability{{Datacenter: "gra", Availability: "1H-low"}},
	}}, nil
}

func monitorApp(t *testing.T) (*fiber.App, *monitor.Monitor, *store.Store) {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	st := store.New(db)
	mon := monitor.New(staticAvail{}, st, nil, time.Minute)
	h := &handlers.MonitorHandler{Monitor: mon, Store: st}

	app := fiber.New()
	app.Get("/api/v1/subscriptions", h.List)
	app.Post("/api/v1/subscriptions", h.Subscribe)
	app.Delete("/api/v1/subscriptions/:plan", h.Unsubscribe)
	app.Post("/api/v1/subscriptions/:plan/check", h.Check)
	app.Post("/api/v1/monitor/interval", h.SetInterval)
	return app, mon, st
}

func TestSubscribeCheckUnsubscribe(t *testing.T) {
	app, _, _ := monitorApp(t)

	req := httptest.NewRequest("POST", "/api/v1/subscriptions",
		strings.NewReader(`{"planCode":"24sk50","serverName":"KS-A","datacenters":["gra"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("subscribe: want 201, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("POST", "/api/v1/subscriptions/24sk50/check", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("check: want 200, got %d", resp.StatusCode)
	}
	var sub domain.Subscription
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		t.Fatal(err)
	}
	if sub.LastKnown["gra"] != "1H-low" {
		t.Fatalf("manual check did not poll: %+v", sub.LastKnown)
	}

	resp, _ = app.Test(httptest.NewRequest("DELETE", "/api/v1/subscriptions/24sk50", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unsubscribe: want 200, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest("DELETE", "/api/v1/subscriptions/24sk50", nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("double unsubscribe: want 404, got %d", resp.StatusCode)
	}
}

func TestIntervalPersistsAcrossRestart(t *testing.T) {
	app, mon, st := monitorApp(t)

	req := httptest.NewRequest("POST", "/api/v1/monitor/interval", strings.NewReader(`{"seconds":120}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	if mon.Interval() != 2*time.Minute {
		t.Fatalf("interval not applied: %v", mon.Interval())
	}
	if v, _ := st.Setting("monitor_interval"); v != "120" {
		t.Fatalf("interval not persisted: %q", v)
	}
}
