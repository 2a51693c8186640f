// Package purchase runs one cart order end to end: stock pre-check,
// cart assembly, option filtering and checkout.
package purchase

import (
	"context"
	"strings"

	"ecosniper/internal/domain"
	applog "ecosniper/internal/log"
	"ecosniper/internal/ovhapi"
)

// OrderService is the cart order flow of the vendor API.
type OrderService interface {
	OpenCart(ctx context.Context) (string, error)
	AddBaseItem(ctx context.Context, cartID, planCode string) (int64, error)
	RequiredConfigurations(ctx context.Context, cartID string, itemID int64) ([]ovhapi.RequiredConfiguration, error)
	SetConfiguration(ctx context.Context, cartID string, itemID int64, label, value string) error
	ListCompatibleOptions(ctx context.Context, cartID, planCode string) ([]ovhapi.EcoOption, error)
	AddOption(ctx context.Context, cartID string, itemID int64, opt ovhapi.EcoOption) error
	AssignCart(ctx context.Context, cartID string) error
	Checkout(ctx context.Context, cartID string) (domain.OrderReceipt, error)
}

// StockChecker answers the pre-purchase availability probe.
type StockChecker interface {
	Availabilities(ctx context.Context, planCode string) ([]ovhapi.ConfigAvailability, error)
}

// regionByDatacenter maps datacenter prefixes onto the region values
// the cart configuration expects. Unknown datacenters are handled by
// consulting the item's required configurations instead of guessing.
var regionByDatacenter = map[string]string{
	"gra": "europe", "rbx": "europe", "sbg": "europe", "eri": "europe",
	"lim": "europe", "waw": "europe", "par": "europe", "fra": "europe",
	"lon": "europe",
	"bhs": "canada",
	"vin": "usa", "hil": "usa",
	"syd": "apac", "sgp": "apac",
}

// skipOptionMarkers filter out license and software addons that would
// add recurring cost. Matching is by substring, matching the breadth of
// vendor naming.
var skipOptionMarkers = []string{
	"windows-server", "sql-server", "cpanel-license", "plesk-",
	"-license-", "os-", "control-panel", "panel", "license", "security",
}

// Executor assembles and checks out one cart per attempt.
type Executor struct {
	orders OrderService
	stock  StockChecker
}

func NewExecutor(orders OrderService, stock StockChecker) *Executor {
	return &Executor{orders: orders, stock: stock}
}

// Attempt runs one purchase attempt for the task. ErrNoStock means the
// window is closed; a PurchaseError means the vendor rejected a cart
// step. Either way the caller decides whether to retry.
func (e *Executor) Attempt(ctx context.Context, task domain.QueueTask) (domain.OrderReceipt, error) {
	if err := e.checkStock(ctx, task.PlanCode, task.Datacenter); err != nil {
		return domain.OrderReceipt{}, err
	}

	cartID, err := e.orders.OpenCart(ctx)
	if err != nil {
		return domain.OrderReceipt{}, &domain.PurchaseError{Step: "open cart", Detail: err.Error()}
	}
	applog.Info("purchase", "cart opened", map[string]any{"cart": cartID, "plan": task.PlanCode})

	itemID, err := e.orders.AddBaseItem(ctx, cartID, task.PlanCode)
	if err != nil {
		return domain.OrderReceipt{}, &domain.PurchaseError{Step: "add item", Detail: err.Error()}
	}

	if err := e.configure(ctx, cartID, itemID, task.Datacenter); err != nil {
		return domain.OrderReceipt{}, err
	}

	e.addOptions(ctx, cartID, itemID, task.PlanCode, task.Options)

	if err := e.orders.AssignCart(ctx, cartID); err != nil {
		return domain.OrderReceipt{}, &domain.PurchaseError{Step: "assign cart", Detail: err.Error()}
	}

	receipt, err := e.orders.Checkout(ctx, cartID)
	if err != nil {
		return domain.OrderReceipt{}, &domain.PurchaseError{Step: "checkout", Detail: err.Error()}
	}
	applog.Info("purchase", "order placed", map[string]any{
		"order": receipt.OrderID, "plan": task.PlanCode, "datacenter": task.Datacenter,
	})
	return receipt, nil
}

// checkStock probes availability right before spending a cart on the
// attempt, so a closed window costs one read instead of a failed order.
func (e *Executor) checkStock(ctx context.Context, planCode, datacenter string) error {
	configs, err := e.stock.Availabilities(ctx, planCode)
	if err != nil {
		return domain.Transient("availability check", err)
	}
	for _, cfg := range configs {
		for _, dc := range cfg.Datacenters {
			if dc.Datacenter == datacenter && domain.Orderable(dc.Availability) {
				return nil
			}
		}
	}
	return domain.ErrNoStock
}

func (e *Executor) configure(ctx context.Context, cartID string, itemID int64, datacenter string) error {
	if err := e.orders.SetConfiguration(ctx, cartID, itemID, "dedicated_datacenter", datacenter); err != nil {
		return &domain.PurchaseError{Step: "set datacenter", Detail: err.Error()}
	}

	if region, ok := regionByDatacenter[prefix(datacenter)]; ok {
		if err := e.orders.SetConfiguration(ctx, cartID, itemID, "region", region); err != nil {
			return &domain.PurchaseError{Step: "set region", Detail: err.Error()}
		}
	} else if e.regionRequired(ctx, cartID, itemID) {
		return &domain.PurchaseError{Step: "set region", Detail: "no region mapping for datacenter " + datacenter}
	}

	if err := e.orders.SetConfiguration(ctx, cartID, itemID, "dedicated_os", "none_64.en"); err != nil {
		return &domain.PurchaseError{Step: "set os", Detail: err.Error()}
	}
	return nil
}

// regionRequired asks the vendor whether the item can be checked out
// without a region value. A failed lookup is treated as not required:
// checkout will surface the real answer.
func (e *Executor) regionRequired(ctx context.Context, cartID string, itemID int64) bool {
	required, err := e.orders.RequiredConfigurations(ctx, cartID, itemID)
	if err != nil {
		applog.Warn("purchase", "required configuration lookup failed", map[string]any{"error": err.Error()})
		return false
	}
	for _, rc := range required {
		if rc.Label == "region" && rc.Required {
			return true
		}
	}
	return false
}

// addOptions attaches the task's hardware options, dropping license and
// software addons and anything the cart does not list as compatible.
// Option failures never abort the purchase.
func (e *Executor) addOptions(ctx context.Context, cartID string, itemID int64, planCode string, options []string) {
	wanted := make([]string, 0, len(options))
	for _, opt := range options {
		if skipOption(opt) {
			applog.Info("purchase", "option filtered out", map[string]any{"option": opt})
			continue
		}
		wanted = append(wanted, opt)
	}
	if len(wanted) == 0 {
		return
	}

	compatible, err := e.orders.ListCompatibleOptions(ctx, cartID, planCode)
	if err != nil {
		applog.Warn("purchase", "compatible options lookup failed", map[string]any{"error": err.Error()})
		return
	}
	byCode := make(map[string]ovhapi.EcoOption, len(compatible))
	for _, c := range compatible {
		byCode[c.PlanCode] = c
	}

	for _, opt := range wanted {
		eco, ok := byCode[opt]
		if !ok {
			applog.Warn("purchase", "option not compatible with plan", map[string]any{"option": opt, "plan": planCode})
			continue
		}
		if err := e.orders.AddOption(ctx, cartID, itemID, eco); err != nil {
			applog.Warn("purchase", "add option failed", map[string]any{"option": opt, "error": err.Error()})
		}
	}
}

func skipOption(code string) bool {
	lower := strings.ToLower(code)
	for _, marker := range skipOptionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func prefix(datacenter string) string {
	if len(datacenter) < 3 {
		return datacenter
	}
	return datacenter[:3]
}
