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
	"ecosniper/internal/match"
	"ecosniper/internal/ovhapi"
	"ecosniper/internal/queue"
	"ecosniper/internal/sniper"
	"ecosniper/internal/store"
)

type staticCatalog struct{}

func (staticCatalog) Plans(context.Context) ([]ovhapi.CatalogPlan, error) {
	return []ovhapi.CatalogPlan{{
		PlanCode: "24sk50",
		AddonFamilies: []ovhapi.AddonFamily{
			{Name: "memory", Addons: []string{"ram-64g-ecc-2400-24sk50"}},
			{Name: "storage", Addons: []string{"softraid-2x480ssd-24sk50"}},
		},
	}}, nil
}

type noStock struct{}

func (noStock) Availabilities(context.Context, string) ([]ovhapi.ConfigAvailability, error) {
	return nil, nil
}

func sniperApp(t *testing.T) (*fiber.App, *sniper.Engine) {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	st := store.New(db)
	reg := queue.NewRegistry(st)
	engine := sniper.NewEngine(match.New(staticCatalog{}), noStock{}, reg, st, nil, time.Minute)
	h := &handlers.SniperHandler{Engine: engine}

	app := fiber.New()
	app.Get("/api/v1/snipers", h.List)
	app.Post("/api/v1/snipers", h.Create)
	app.Delete("/api/v1/snipers/:id", h.Delete)
	app.Post("/api/v1/snipers/:id/toggle", h.Toggle)
	return app, engine
}

func TestSniperCreateRequiresConfiguration(t *testing.T) {
	app, _ := sniperApp(t)

	req := httptest.NewRequest("POST", "/api/v1/snipers", strings.NewReader(`{"sourcePlanCode":"24ska01"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("want 400 without bound configuration, got %d", resp.StatusCode)
	}
}

func TestSniperCreateRunsInitialMatch(t *testing.T) {
	app, engine := sniperApp(t)

	req := httptest.NewRequest("POST", "/api/v1/snipers",
		strings.NewReader(`{"sourcePlanCode":"24ska01","memory":"RAM-64G-ECC-2400","storage":"softraid-2x480ssd"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("want 201, got %d", resp.StatusCode)
	}

	var task domain.SniperTask
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		t.Fatal(err)
	}
	if task.MatchStatus != domain.MatchMatched || len(task.MatchedPlans) != 1 || task.MatchedPlans[0] != "24sk50" {
		t.Fatalf("initial match missing: %+v", task)
	}

	resp, _ = app.Test(httptest.NewRequest("POST", "/api/v1/snipers/"+task.ID+"/toggle", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("toggle: want 200, got %d", resp.StatusCode)
	}
	got, _ := engine.Get(task.ID)
	if got.Enabled {
		t.Fatal("toggle did not disable the task")
	}

	resp, _ = app.Test(httptest.NewRequest("DELETE", "/api/v1/snipers/"+task.ID, nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("delete: want 200, got %d", resp.StatusCode)
	}
}
