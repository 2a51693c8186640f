package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port    string
	DBDSN   string
	LogFile string

	// Vendor API credentials.
	Endpoint    string // ovh-eu | ovh-us | ovh-ca
	AppKey      string
	AppSecret   string
	ConsumerKey string
	Subsidiary  string // catalog zone, e.g. IE, FR, DE

	// Telegram notification transport.
	TGToken  string
	TGChatID string

	// bcrypt hash of the control-surface API key; empty disables auth.
	APIKeyHash string

	QueueTick       time.Duration
	SniperInterval  time.Duration
	MonitorInterval time.Duration
	CatalogRefresh  time.Duration
}

func Load() Config {
	cfg := Config{
		Port:            getenv("PORT", "8081"),
		DBDSN:           getenv("DB_DSN", "ecosniper.db"),
		LogFile:         os.Getenv("LOG_FILE"),
		Endpoint:        getenv("OVH_ENDPOINT", "ovh-eu"),
		AppKey:          os.Getenv("OVH_APP_KEY"),
		AppSecret:       os.Getenv("OVH_APP_SECRET"),
		ConsumerKey:     os.Getenv("OVH_CONSUMER_KEY"),
		Subsidiary:      getenv("OVH_SUBSIDIARY", "IE"),
		TGToken:         os.Getenv("TG_TOKEN"),
		TGChatID:        os.Getenv("TG_CHAT_ID"),
		APIKeyHash:      os.Getenv("API_KEY_HASH"),
		QueueTick:       seconds("QUEUE_TICK_SECONDS", 1),
		SniperInterval:  seconds("SNIPER_INTERVAL_SECONDS", 60),
		MonitorInterval: seconds("MONITOR_INTERVAL_SECONDS", 60),
		CatalogRefresh:  seconds("CATALOG_REFRESH_SECONDS", 2*60*60),
	}
	log.Printf("[config] PORT=%s DB_DSN=%s OVH_ENDPOINT=%s OVH_SUBSIDIARY=%s queue_tick=%s sniper=%s monitor=%s catalog=%s",
		cfg.Port, cfg.DBDSN, cfg.Endpoint, cfg.Subsidiary, cfg.QueueTick, cfg.SniperInterval, cfg.MonitorInterval, cfg.CatalogRefresh)
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func seconds(key string, def int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(def) * time.Second
}
