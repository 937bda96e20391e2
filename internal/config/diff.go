package config

import "reflect"

// ConfigDiff describes what changed between two configs. Fields that can be
// applied at runtime are reported individually; everything else is folded
// into RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	LiveVoiceChanged bool
	NewLiveVoice     string

	// CoachChanged is set when any coach setting changed. The new values are
	// in the new config's Coach section.
	CoachChanged bool

	// RestartRequired lists the top-level sections whose changes only take
	// effect after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.LiveVoiceChanged && !d.CoachChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Live.Voice != new.Live.Voice {
		d.LiveVoiceChanged = true
		d.NewLiveVoice = new.Live.Voice
	}

	if !reflect.DeepEqual(old.Coach, new.Coach) {
		d.CoachChanged = true
	}

	oldLive, newLive := old.Live, new.Live
	oldLive.Voice, newLive.Voice = "", ""
	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""

	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"providers", old.Providers, new.Providers},
		{"live", oldLive, newLive},
		{"storage", old.Storage, new.Storage},
		{"output_dir", old.OutputDir, new.OutputDir},
		{"profile", old.Profile, new.Profile},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}

	return d
}
