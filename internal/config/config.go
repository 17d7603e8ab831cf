package config

import "os"

// Config is the root process configuration for greetbot. Operator-tunable
// dispatch settings (reply text, delay, cap) live in the KV store instead,
// behind the admin API; this file covers only what the process needs to
// boot: platform credentials, the store, the admin server, the schedule.
type Config struct {
	Platform  string          `json:"platform"` // "bluesky" or "discord"
	Bluesky   BlueskyConfig   `json:"bluesky"`
	Discord   DiscordConfig   `json:"discord"`
	Store     StoreConfig     `json:"store"`
	Admin     AdminConfig     `json:"admin"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

// BlueskyConfig holds Bluesky chat credentials.
type BlueskyConfig struct {
	Service     string `json:"service"`
	Identifier  string `json:"identifier"` // handle or DID
	AppPassword string `json:"appPassword"`
}

// DiscordConfig holds the Discord bot token.
type DiscordConfig struct {
	Token string `json:"token"`
}

// StoreConfig selects and configures the KV backend.
type StoreConfig struct {
	Backend string      `json:"backend"` // "redis" or "memory"
	Redis   RedisConfig `json:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AdminConfig holds the admin HTTP server settings.
type AdminConfig struct {
	Listen        string `json:"listen"`
	SessionSecret string `json:"sessionSecret"`
}

// SchedulerConfig holds the recurring-trigger settings. Cron takes
// precedence over the interval when both are set.
type SchedulerConfig struct {
	IntervalSeconds int    `json:"intervalSeconds"`
	Cron            string `json:"cron,omitempty"`
	PageSize        int    `json:"pageSize"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Platform: "bluesky",
		Bluesky: BlueskyConfig{
			Service: "https://bsky.social",
		},
		Store: StoreConfig{
			Backend: "redis",
			Redis:   RedisConfig{Addr: "127.0.0.1:6379"},
		},
		Admin: AdminConfig{
			Listen: "127.0.0.1:8787",
		},
		Scheduler: SchedulerConfig{
			IntervalSeconds: 60,
			PageSize:        50,
		},
	}
}

// applyEnvOverrides lets secrets come from the environment (or a .env
// file loaded by main) instead of the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GREETBOT_BLUESKY_APP_PASSWORD"); v != "" {
		c.Bluesky.AppPassword = v
	}
	if v := os.Getenv("GREETBOT_DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("GREETBOT_REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("GREETBOT_SESSION_SECRET"); v != "" {
		c.Admin.SessionSecret = v
	}
}
