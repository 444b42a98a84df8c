package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// HiddenChanged is true when voices.hidden differs as a set.
	HiddenChanged bool
	HiddenAdded   []string // ids newly hidden, sorted
	HiddenRemoved []string // ids no longer hidden, sorted

	AdminChanged bool
	NewAdmin     AdminConfig
}

// Changed reports whether any hot-reloadable field differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.HiddenChanged || d.AdminChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Hidden voices, compared as sets.
	oldHidden := toSet(old.Voices.Hidden)
	newHidden := toSet(new.Voices.Hidden)
	for id := range newHidden {
		if _, ok := oldHidden[id]; !ok {
			d.HiddenAdded = append(d.HiddenAdded, id)
		}
	}
	for id := range oldHidden {
		if _, ok := newHidden[id]; !ok {
			d.HiddenRemoved = append(d.HiddenRemoved, id)
		}
	}
	slices.Sort(d.HiddenAdded)
	slices.Sort(d.HiddenRemoved)
	d.HiddenChanged = len(d.HiddenAdded) > 0 || len(d.HiddenRemoved) > 0

	// Admin credentials
	if old.Admin != new.Admin {
		d.AdminChanged = true
		d.NewAdmin = new.Admin
	}

	return d
}

func toSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}
