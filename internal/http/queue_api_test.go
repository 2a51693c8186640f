package handlers_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"ecosniper/internal/domain"
	"ecosniper/internal/http/handlers"
	"ecosniper/internal/queue"
	"ecosniper/internal/store"
)

func queueApp(t *testing.T) (*fiber.App, *queue.Registry) {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	reg := queue.NewRegistry(store.New(db))
	h := &handlers.QueueHandler{Registry: reg}

	app := fiber.New()
	app.Get("/api/v1/queue", h.List)
	app.Post("/api/v1/queue", h.Add)
	app.Delete("/api/v1/queue/:id", h.Delete)
	app.Patch("/api/v1/queue/:id/status", h.SetStatus)
	return app, reg
}

func TestQueueAddValidatesInput(t *testing.T) {
	app, _ := queueApp(t)

	for _, body := range []string{
		`{"planCode":"","datacenter":"gra"}`,
		`{"planCode":"24sk50","datacenter":"GRA COMPUTE"}`,
		`{"planCode":"24sk50","datacenter":"gra","options":["bad option!"]}`,
		`{"planCode":"24sk50","datacenter":"gra","maxRetries":-1}`,
	} {
		req := httptest.NewRequest("POST", "/api/v1/queue", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("body %s: want 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestQueueAddAndList(t *testing.T) {
	app, reg := queueApp(t)

	req := httptest.NewRequest("POST", "/api/v1/queue",
		strings.NewReader(`{"planCode":"24SK50","datacenter":"gra","options":["ram-64g-ecc-2400-24sk50"],"retryInterval":10}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("want 201, got %d", resp.StatusCode)
	}

	var created domain.QueueTask
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.PlanCode != "24sk50" || created.Status != domain.TaskRunning {
		t.Fatalf("bad task: %+v", created)
	}
	if created.RetryInterval != 10 {
		t.Fatalf("retryInterval not applied: %+v", created)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/api/v1/queue", nil))
	var listed []domain.QueueTask
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("bad list: %+v", listed)
	}

	if _, ok := reg.Get(created.ID); !ok {
		t.Fatal("task missing from registry")
	}
}

func TestQueuePauseResumeAndDelete(t *testing.T) {
	app, reg := queueApp(t)
	task, err := reg.Enqueue(domain.QueueTask{PlanCode: "24sk50", Datacenter: "gra", RetryInterval: 30})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("PATCH", "/api/v1/queue/"+task.ID+"/status", strings.NewReader(`{"status":"paused"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("pause: want 200, got %d", resp.StatusCode)
	}
	got, _ := reg.Get(task.ID)
	if got.Status != domain.TaskPaused {
		t.Fatalf("want paused, got %q", got.Status)
	}

	req = httptest.NewRequest("PATCH", "/api/v1/queue/"+task.ID+"/status", strings.NewReader(`{"status":"exploded"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("bad status: want 400, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("DELETE", "/api/v1/queue/"+task.ID, nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("delete: want 200, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest("DELETE", "/api/v1/queue/"+task.ID, nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("double delete: want 404, got %d", resp.StatusCode)
	}
}
