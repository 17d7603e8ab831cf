package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Validate checks the configuration for invalid or missing values.
func (c *Config) Validate() error {
	if errs := c.validate(); len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validate() []string {
	var errs []string

	switch c.Platform {
	case "bluesky":
		if c.Bluesky.Identifier == "" {
			errs = append(errs, "bluesky.identifier is required when platform is bluesky")
		}
		if c.Bluesky.AppPassword == "" {
			errs = append(errs, "bluesky.appPassword is required when platform is bluesky (or GREETBOT_BLUESKY_APP_PASSWORD)")
		}
	case "discord":
		if c.Discord.Token == "" {
			errs = append(errs, "discord.token is required when platform is discord (or GREETBOT_DISCORD_TOKEN)")
		}
	default:
		errs = append(errs, fmt.Sprintf("platform must be bluesky or discord, got %q", c.Platform))
	}

	switch c.Store.Backend {
	case "redis":
		if c.Store.Redis.Addr == "" {
			errs = append(errs, "store.redis.addr is required when backend is redis")
		}
	case "memory":
		// No settings; ledger state will not survive restarts.
	default:
		errs = append(errs, fmt.Sprintf("store.backend must be redis or memory, got %q", c.Store.Backend))
	}

	if c.Store.Redis.DB < 0 {
		errs = append(errs, "store.redis.db must be non-negative")
	}

	s := c.Scheduler
	if s.IntervalSeconds < 0 {
		errs = append(errs, "scheduler.intervalSeconds must be non-negative")
	}
	if s.IntervalSeconds == 0 && s.Cron == "" {
		errs = append(errs, "scheduler needs intervalSeconds or cron")
	}
	if s.PageSize < 1 || s.PageSize > 100 {
		errs = append(errs, "scheduler.pageSize must be between 1 and 100")
	}

	return errs
}

// CheckUnknownFields walks the raw config map and returns paths of any
// keys that do not correspond to known Config struct fields.
func CheckUnknownFields(raw map[string]any) []string {
	result := checkUnknownFields(raw, reflect.TypeOf(Config{}), "")
	sort.Strings(result)
	return result
}

func checkUnknownFields(data map[string]any, t reflect.Type, prefix string) []string {
	t = derefType(t)
	if t.Kind() != reflect.Struct {
		return nil
	}

	known := jsonFieldMap(t)
	var unknown []string
	for key, val := range data {
		ft, ok := known[key]
		if !ok {
			unknown = append(unknown, joinPath(prefix, key))
			continue
		}
		if nested, ok := val.(map[string]any); ok {
			unknown = append(unknown, checkUnknownFields(nested, ft, joinPath(prefix, key))...)
		}
	}
	return unknown
}

func jsonFieldMap(t reflect.Type) map[string]reflect.Type {
	m := make(map[string]reflect.Type, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name != "" {
			m[name] = f.Type
		}
	}
	return m
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
