package config

import (
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopfloor/moldtrack/internal/threshold"
	"github.com/spf13/viper"
)

// DefaultThresholdCatalog is the milestone set applied when no
// thresholds.yml is present. Keeping it in one place (instead of literals
// at every call site) is deliberate: the recording transaction and the
// schedule service must always agree on the milestone tables.
func DefaultThresholdCatalog() threshold.Catalog {
	return threshold.Catalog{
		Absolute: []threshold.AbsoluteMilestone{
			{Shots: 100_000, Label: "100k shots", Severity: threshold.SeverityWarning},
			{Shots: 200_000, Label: "200k shots", Severity: threshold.SeverityWarning},
			{Shots: 500_000, Label: "500k shots", Severity: threshold.SeverityCritical},
			{Shots: 800_000, Label: "800k shots", Severity: threshold.SeverityCritical},
			{Shots: 1_000_000, Label: "1M shots", Severity: threshold.SeverityCritical},
		},
		Percent: []threshold.PercentTier{
			{Percent: 80, Severity: threshold.SeverityInfo},
			{Percent: 90, Severity: threshold.SeverityWarning},
			{Percent: 95, Severity: threshold.SeverityWarning},
			{Percent: 100, Severity: threshold.SeverityCritical},
		},
	}
}

// ThresholdsHolder serves the current milestone catalog and hot-reloads it
// when thresholds.yml changes. Readers always get a complete, validated
// catalog; an invalid edit on disk is ignored and logged.
type ThresholdsHolder struct {
	current atomic.Value // holds threshold.Catalog
}

// NewThresholdsHolder loads thresholds.yml via viper, falling back to the
// defaults when no file exists.
func NewThresholdsHolder() (*ThresholdsHolder, error) {
	v := viper.New()

	v.SetConfigName("thresholds")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/moldtrack/config") // Volume-mounted config
	v.AddConfigPath("/etc/moldtrack")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("MOLDTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fromFile = false
	}

	catalog := DefaultThresholdCatalog()
	if fromFile {
		var loaded threshold.Catalog
		if err := v.UnmarshalKey("thresholds", &loaded); err != nil {
			return nil, err
		}
		if err := loaded.Validate(); err != nil {
			return nil, err
		}
		catalog = loaded
	}

	holder := &ThresholdsHolder{}
	holder.current.Store(catalog)

	if fromFile {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated threshold.Catalog
			if err := v.UnmarshalKey("thresholds", &updated); err != nil {
				log.Printf("[thresholds] reload failed: %v", err)
				return
			}
			if err := updated.Validate(); err != nil {
				log.Printf("[thresholds] invalid catalog ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[thresholds] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

// NewStaticThresholdsHolder wraps a fixed catalog; used by tests and by
// callers that manage their own configuration.
func NewStaticThresholdsHolder(catalog threshold.Catalog) (*ThresholdsHolder, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	holder := &ThresholdsHolder{}
	holder.current.Store(catalog)
	return holder, nil
}

// Get returns the current catalog.
func (h *ThresholdsHolder) Get() threshold.Catalog {
	return h.current.Load().(threshold.Catalog)
}
