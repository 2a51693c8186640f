// Package ovhapi wraps the vendor SDK behind the two collaborator
// surfaces the engine needs: catalog/availability reads and the cart
// order flow.
package ovhapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ovh/go-ovh/ovh"

	"ecosniper/internal/domain"
)

type Client struct {
	c          *ovh.Client
	subsidiary string
}

// New builds a vendor client. Credentials are required; a client with
// missing credentials cannot make a single call, so this fails fast.
func New(endpoint, appKey, appSecret, consumerKey, subsidiary string) (*Client, error) {
	if appKey == "" || appSecret == "" || consumerKey == "" {
		return nil, fmt.Errorf("missing API credentials")
	}
	c, err := ovh.NewClient(endpoint, appKey, appSecret, consumerKey)
	if err != nil {
		return nil, err
	}
	return &Client{c: c, subsidiary: subsidiary}, nil
}

func (c *Client) Subsidiary() string { return c.subsidiary }

// DatacenterAvailability is one location's state for a configuration.
type DatacenterAvailability struct {
	Datacenter   string `json:"datacenter"`
	Availability string `json:"availability"`
}

// ConfigAvailability is one (memory, storage) combination of a plan and
// its per-datacenter availability.
type ConfigAvailability struct {
	FQN         string                   `json:"fqn"`
	PlanCode    string                   `json:"planCode"`
	Memory      string                   `json:"memory"`
	Storage     string                   `json:"storage"`
	Datacenters []DatacenterAvailability `json:"datacenters"`
}

// Availabilities lists every configuration combination of a plan with
// its per-datacenter stock state.
func (c *Client) Availabilities(ctx context.Context, planCode string) ([]ConfigAvailability, error) {
	var out []ConfigAvailability
	path := "/dedicated/server/datacenter/availabilities?planCode=" + url.QueryEscape(planCode)
	if err := c.c.GetWithContext(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddonFamily groups a plan's addon codes by concern (memory, storage,
// bandwidth, ...).
type AddonFamily struct {
	Name    string   `json:"name"`
	Default string   `json:"default"`
	Addons  []string `json:"addons"`
}

// CatalogPlan is one orderable plan of the public eco catalog.
type CatalogPlan struct {
	PlanCode      string        `json:"planCode"`
	InvoiceName   string        `json:"invoiceName"`
	Description   string        `json:"description"`
	AddonFamilies []AddonFamily `json:"addonFamilies"`
}

// Catalog is the public eco catalog for one subsidiary.
type Catalog struct {
	Plans []CatalogPlan `json:"plans"`
}

func (c *Client) Catalog(ctx context.Context) (*Catalog, error) {
	var out Catalog
	path := "/order/catalog/public/eco?ovhSubsidiary=" + url.QueryEscape(c.subsidiary)
	if err := c.c.GetWithContext(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- order flow ----

// RequiredConfiguration describes a configuration label the vendor
// expects on a cart item.
type RequiredConfiguration struct {
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// EcoOption is an addon compatible with a base plan inside a cart.
type EcoOption struct {
	PlanCode    string `json:"planCode"`
	Family      string `json:"family"`
	Duration    string `json:"duration"`
	PricingMode string `json:"pricingMode"`
	Mandatory   bool   `json:"mandatory"`
}

func (c *Client) OpenCart(ctx context.Context) (string, error) {
	var out struct {
		CartID string `json:"cartId"`
	}
	body := map[string]string{"ovhSubsidiary": c.subsidiary}
	if err := c.c.PostWithContext(ctx, "/order/cart", body, &out); err != nil {
		return "", err
	}
	return out.CartID, nil
}

func (c *Client) AddBaseItem(ctx context.Context, cartID, planCode string) (int64, error) {
	var out struct {
		ItemID int64 `json:"itemId"`
	}
	body := map[string]any{
		"planCode":    planCode,
		"pricingMode": "default",
		"duration":    "P1M",
		"quantity":    1,
	}
	path := fmt.Sprintf("/order/cart/%s/eco", url.PathEscape(cartID))
	if err := c.c.PostWithContext(ctx, path, body, &out); err != nil {
		return 0, err
	}
	return out.ItemID, nil
}

func (c *Client) RequiredConfigurations(ctx context.Context, cartID string, itemID int64) ([]RequiredConfiguration, error) {
	var out []RequiredConfiguration
	path := fmt.Sprintf("/order/cart/%s/item/%d/requiredConfiguration", url.PathEscape(cartID), itemID)
	if err := c.c.GetWithContext(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SetConfiguration(ctx context.Context, cartID string, itemID int64, label, value string) error {
	body := map[string]string{"label": label, "value": value}
	path := fmt.Sprintf("/order/cart/%s/item/%d/configuration", url.PathEscape(cartID), itemID)
	return c.c.PostWithContext(ctx, path, body, nil)
}

func (c *Client) ListCompatibleOptions(ctx context.Context, cartID, planCode string) ([]EcoOption, error) {
	var out []EcoOption
	path := fmt.Sprintf("/order/cart/%s/eco/options?planCode=%s", url.PathEscape(cartID), url.QueryEscape(planCode))
	if err := c.c.GetWithContext(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddOption(ctx context.Context, cartID string, itemID int64, opt EcoOption) error {
	duration := opt.Duration
	if duration == "" {
		duration = "P1M"
	}
	pricingMode := opt.PricingMode
	if pricingMode == "" {
		pricingMode = "default"
	}
	body := map[string]any{
		"itemId":      itemID,
		"planCode":    opt.PlanCode,
		"duration":    duration,
		"pricingMode": pricingMode,
		"quantity":    1,
	}
	path := fmt.Sprintf("/order/cart/%s/eco/options", url.PathEscape(cartID))
	return c.c.PostWithContext(ctx, path, body, nil)
}

func (c *Client) AssignCart(ctx context.Context, cartID string) error {
	path := fmt.Sprintf("/order/cart/%s/assign", url.PathEscape(cartID))
	return c.c.PostWithContext(ctx, path, nil, nil)
}

// Checkout places the order without automatic payment and with the
// cancellation period waived, so the window is not lost to a cooling
// delay.
func (c *Client) Checkout(ctx context.Context, cartID string) (domain.OrderReceipt, error) {
	var out struct {
		OrderID int64  `json:"orderId"`
		URL     string `json:"url"`
	}
	body := map[string]any{
		"autoPayWithPreferredPaymentMethod": false,
		"waiveRetractationPeriod":           true,
	}
	path := fmt.Sprintf("/order/cart/%s/checkout", url.PathEscape(cartID))
	if err := c.c.PostWithContext(ctx, path, body, &out); err != nil {
		return domain.OrderReceipt{}, err
	}
	return domain.OrderReceipt{OrderID: strconv.FormatInt(out.OrderID, 10), OrderURL: out.URL}, nil
}
