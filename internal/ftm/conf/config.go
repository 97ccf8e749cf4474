package conf

import (
	"github.com/ftm-project/ftm/internal/errors"
)

// Config is the FTM on-disk configuration (spec.md §3), loaded from and
// persisted to .ftm/config.yaml.
type Config struct {
	ConfigDir string         `mapstructure:"-" json:"-"`
	Watch     WatchConfig    `mapstructure:"watch" json:"watch"`
	Settings  SettingsConfig `mapstructure:"settings" json:"settings"`
	Port      int            `mapstructure:"port" json:"port"`
}

type WatchConfig struct {
	Patterns []string `mapstructure:"patterns" json:"patterns"`
	Exclude  []string `mapstructure:"exclude" json:"exclude"`
}

type SettingsConfig struct {
	MaxHistory    int   `mapstructure:"max_history" json:"max_history"`
	MaxFileSize   int64 `mapstructure:"max_file_size" json:"max_file_size"`
	MaxQuota      int64 `mapstructure:"max_quota" json:"max_quota"`
	ScanInterval  int   `mapstructure:"scan_interval" json:"scan_interval"`   // seconds
	CleanInterval int   `mapstructure:"clean_interval" json:"clean_interval"` // seconds
}

// Defaults mirror spec.md §3's configuration table, expressed as the
// dotted-key map config.SetDefaults expects.
var Defaults = map[string]any{
	"watch.patterns":          []string{"**/*"},
	"watch.exclude":           []string{".ftm/**", "**/.git/**", "**/node_modules/**"},
	"settings.max_history":    1000,
	"settings.max_file_size":  10 * 1024 * 1024,
	"settings.max_quota":      100 * 1024 * 1024,
	"settings.scan_interval":  60,
	"settings.clean_interval": 300,
	"port":                    13580,
}

// Validate rejects malformed configuration at load time, per the
// InvalidConfig error kind (spec.md §7).
func (c *Config) Validate() error {
	if len(c.Watch.Patterns) == 0 {
		return errors.InvalidConfig("watch.patterns", "must contain at least one pattern")
	}
	if c.Settings.MaxHistory <= 0 {
		return errors.InvalidConfig("settings.max_history", "must be positive")
	}
	if c.Settings.MaxFileSize <= 0 {
		return errors.InvalidConfig("settings.max_file_size", "must be positive")
	}
	if c.Settings.MaxQuota <= 0 {
		return errors.InvalidConfig("settings.max_quota", "must be positive")
	}
	if c.Settings.ScanInterval <= 0 {
		return errors.InvalidConfig("settings.scan_interval", "must be positive")
	}
	if c.Settings.CleanInterval <= 0 {
		return errors.InvalidConfig("settings.clean_interval", "must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.InvalidConfig("port", "must be between 1 and 65535")
	}
	return nil
}
