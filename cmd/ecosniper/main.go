package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"golang.org/x/sync/errgroup"

	"ecosniper/internal/catalog"
	"ecosniper/internal/config"
	"ecosniper/internal/http/handlers"
	applog "ecosniper/internal/log"
	"ecosniper/internal/match"
	"ecosniper/internal/monitor"
	"ecosniper/internal/notify"
	"ecosniper/internal/ovhapi"
	"ecosniper/internal/purchase"
	"ecosniper/internal/queue"
	"ecosniper/internal/sniper"
	"ecosniper/internal/store"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	db, err := store.Open(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	st := store.New(db)

	api, err := ovhapi.New(cfg.Endpoint, cfg.AppKey, cfg.AppSecret, cfg.ConsumerKey, cfg.Subsidiary)
	if err != nil {
		log.Fatalf("vendor API: %v (set OVH_APP_KEY, OVH_APP_SECRET, OVH_CONSUMER_KEY)", err)
	}

	// Notification credentials: environment first, saved settings win.
	notifier := notify.NewTelegram(cfg.TGToken, cfg.TGChatID)
	if token, err := st.Setting("tg_token"); err == nil && token != "" {
		chatID, _ := st.Setting("tg_chat_id")
		notifier.Update(token, chatID)
	}

	cache := catalog.NewCache(api, cfg.CatalogRefresh)
	matcher := match.New(cache)

	reg := queue.NewRegistry(st)
	if tasks, err := st.LoadTasks(); err != nil {
		log.Fatal(err)
	} else {
		reg.Load(tasks)
		applog.Info("main", "queue restored", map[string]any{"tasks": len(tasks)})
	}

	executor := purchase.NewExecutor(api, api)
	processor := queue.NewProcessor(reg, executor, st, notifier, cfg.QueueTick)

	engine := sniper.NewEngine(matcher, api, reg, st, notifier, cfg.SniperInterval)
	if tasks, err := st.LoadSniperTasks(); err != nil {
		log.Fatal(err)
	} else {
		engine.Load(tasks)
		applog.Info("main", "sniper tasks restored", map[string]any{"tasks": len(tasks)})
	}

	monInterval := cfg.MonitorInterval
	if v, err := st.Setting("monitor_interval"); err == nil && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			monInterval = time.Duration(n) * time.Second
		}
	}
	mon := monitor.New(api, st, notifier, monInterval)
	if subs, err := st.LoadSubscriptions(); err != nil {
		log.Fatal(err)
	} else {
		mon.Load(subs)
		applog.Info("main", "subscriptions restored", map[string]any{"subscriptions": len(subs)})
	}

	// Templates & app
	viewEngine := html.New("./web/templates", ".html")

	app := fiber.New(fiber.Config{
		Views: viewEngine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Error("http", "unhandled error", err, map[string]any{"path": c.Path()})
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		},
	})
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))

	deps := handlers.NewDeps(cfg, reg, engine, mon, cache, st, api, notifier)

	// ---------- Routes ----------
	app.Get("/", deps.Dashboard.Home)
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	v1 := app.Group("/api/v1", handlers.RequireAPIKey(cfg.APIKeyHash))

	v1.Get("/queue", deps.Queue.List)
	v1.Post("/queue", deps.Queue.Add)
	v1.Delete("/queue", deps.Queue.Clear)
	v1.Delete("/queue/:id", deps.Queue.Delete)
	v1.Patch("/queue/:id/status", deps.Queue.SetStatus)

	v1.Get("/history", deps.History.List)
	v1.Delete("/history", deps.History.Clear)

	v1.Get("/snipers", deps.Sniper.List)
	v1.Post("/snipers", deps.Sniper.Create)
	v1.Delete("/snipers/:id", deps.Sniper.Delete)
	v1.Post("/snipers/:id/toggle", deps.Sniper.Toggle)
	v1.Post("/snipers/:id/check", deps.Sniper.Check)

	v1.Get("/subscriptions", deps.Monitor.List)
	v1.Post("/subscriptions", deps.Monitor.Subscribe)
	v1.Delete("/subscriptions", deps.Monitor.Clear)
	v1.Delete("/subscriptions/:plan", deps.Monitor.Unsubscribe)
	v1.Get("/subscriptions/:plan/history", deps.Monitor.History)
	v1.Post("/subscriptions/:plan/check", deps.Monitor.Check)
	v1.Get("/monitor", deps.Monitor.Status)
	v1.Post("/monitor/start", deps.Monitor.Start)
	v1.Post("/monitor/stop", deps.Monitor.Stop)
	v1.Post("/monitor/interval", deps.Monitor.SetInterval)

	v1.Get("/catalog", deps.Catalog.List)
	v1.Get("/catalog/info", deps.Catalog.Info)
	v1.Post("/catalog/refresh", deps.Catalog.Refresh)
	v1.Get("/catalog/:plan", deps.Catalog.Plan)
	v1.Get("/availability", limiter.New(limiter.Config{
		Max:        15,
		Expiration: 30 * time.Second,
	}), deps.Catalog.Availability)

	v1.Get("/settings", deps.Settings.Get)
	v1.Post("/settings", deps.Settings.Save)

	v1.Get("/logs", deps.Logs.List)
	v1.Delete("/logs", deps.Logs.Clear)

	v1.Get("/stats", deps.Stats.Overview)

	// ---------- Supervision ----------
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { processor.Run(ctx); return nil })
	g.Go(func() error { engine.Run(ctx); return nil })
	g.Go(func() error { mon.Run(ctx); return nil })
	g.Go(func() error { cache.Run(ctx); return nil })
	g.Go(func() error { return app.Listen(":" + cfg.Port) })
	g.Go(func() error {
		<-ctx.Done()
		return app.ShutdownWithTimeout(5 * time.Second)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
