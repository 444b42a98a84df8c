package app

import (
	"log/slog"

	"github.com/MrWong99/newscast/internal/config"
	"github.com/MrWong99/newscast/internal/studio"
)

// ApplyConfig applies the hot-reloadable part of a config change: the log
// level, hidden voices and admin credentials. Everything else needs a
// restart and is only logged. It is meant as the onChange callback of a
// [config.Watcher].
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		a.log.Info("config reloaded; nothing hot-reloadable changed")
		return
	}

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		a.log.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.HiddenChanged {
		if err := a.voices.ApplyHidden(a.ctx, d.HiddenAdded, d.HiddenRemoved); err != nil {
			a.log.Warn("apply hidden voices", "err", err)
		} else {
			a.log.Info("hidden voices updated", "hidden", d.HiddenAdded, "shown", d.HiddenRemoved)
		}
	}

	if d.AdminChanged {
		a.shell.SetAdmin(studio.Credentials{ID: d.NewAdmin.ID, Secret: d.NewAdmin.Secret})
		a.log.Info("admin credentials updated")
	}
}

// SlogLevel converts a config log level to its slog equivalent.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
