package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "ecosniper/internal/log"
	"ecosniper/internal/notify"
	"ecosniper/internal/store"
)

type SettingsHandler struct {
	Store    *store.Store
	Notifier *notify.Telegram
}

type settingsRequest struct {
	TGToken  string `json:"tgToken"`
	TGChatID string `json:"tgChatId"`
	// SendTest fires a test message after applying the credentials.
	SendTest bool `json:"sendTest"`
}

// Get reports whether notifications are configured. Credentials are
// never echoed back.
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"telegramConfigured": h.Notifier.Configured(),
	})
}

// Save replaces the notification credentials and persists them.
func (h *SettingsHandler) Save(c *fiber.Ctx) error {
	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}

	h.Notifier.Update(req.TGToken, req.TGChatID)
	if err := h.Store.SaveSetting("tg_token", req.TGToken); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.Store.SaveSetting("tg_chat_id", req.TGChatID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	applog.Info("http", "notification settings updated", nil)

	resp := fiber.Map{"telegramConfigured": h.Notifier.Configured()}
	if req.SendTest {
		resp["testDelivered"] = h.Notifier.Notify("Notification test: configuration works.")
	}
	return c.JSON(resp)
}
