package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch re-reads the local settings file whenever it changes on disk and
// hands the freshly unmarshalled configuration to onChange. Listen ports
// and the node name are fixed for the process lifetime; consumers decide
// which of the remaining knobs they honor at runtime. Remote-mode
// configurations have no file to watch and return immediately.
func (c *Config) Watch(logger *slog.Logger, onChange func(*Config)) {
	if c.v == nil || c.remote {
		return
	}

	c.v.OnConfigChange(func(event fsnotify.Event) {
		fresh := &Config{Build: c.Build, v: c.v, remote: c.remote}
		if err := c.v.Unmarshal(fresh); err != nil {
			logger.Error("SETTINGS_RELOAD_FAILED", "path", event.Name, "err", err)
			return
		}
		if err := fresh.validate(); err != nil {
			logger.Error("SETTINGS_RELOAD_REJECTED", "path", event.Name, "err", err)
			return
		}

		logger.Info("SETTINGS_RELOADED", "path", event.Name, "op", event.Op.String())
		if onChange != nil {
			onChange(fresh)
		}
	})
	c.v.WatchConfig()
}
