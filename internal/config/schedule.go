package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DueDateEntry is one filing deadline, relative to the current calendar year.
type DueDateEntry struct {
	Month      int `mapstructure:"month"`
	Day        int `mapstructure:"day"`
	YearOffset int `mapstructure:"year_offset"`
}

type DueDateSchedule struct {
	Entries []DueDateEntry `mapstructure:"entries"`
}

// DefaultDueDateSchedule mirrors the quarterly estimated-tax calendar:
// Apr 15, Jun 15, Sep 15 and Jan 15 of the following year.
func DefaultDueDateSchedule() DueDateSchedule {
	return DueDateSchedule{
		Entries: []DueDateEntry{
			{Month: 4, Day: 15},
			{Month: 6, Day: 15},
			{Month: 9, Day: 15},
			{Month: 1, Day: 15, YearOffset: 1},
		},
	}
}

var defaultSchedulePaths = []string{
	"/etc/taxtracker",
	".",
}

type DueDateScheduleHolder struct {
	current atomic.Value // holds DueDateSchedule
}

// NewDueDateScheduleHolder loads duedates.yml from the default search paths.
func NewDueDateScheduleHolder(log *zap.Logger) (*DueDateScheduleHolder, error) {
	return LoadDueDateSchedule(log, defaultSchedulePaths...)
}

// LoadDueDateSchedule reads the schedule from the first duedates.yml found in
// paths, falling back to DefaultDueDateSchedule. A found file is watched and
// reloaded on change; invalid reloads are ignored.
func LoadDueDateSchedule(log *zap.Logger, paths ...string) (*DueDateScheduleHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.duedates")

	v := viper.New()
	v.SetConfigName("duedates")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	v.SetEnvPrefix("TAXTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &DueDateScheduleHolder{}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		holder.current.Store(DefaultDueDateSchedule())
		return holder, nil
	}

	var cfg DueDateSchedule
	if err := v.UnmarshalKey("duedates", &cfg); err != nil {
		return nil, err
	}
	if err := validateDueDateSchedule(cfg); err != nil {
		return nil, err
	}
	holder.current.Store(cfg)
	log.Info("due date schedule loaded", zap.String("file", v.ConfigFileUsed()), zap.Int("entries", len(cfg.Entries)))

	v.OnConfigChange(func(e fsnotify.Event) {
		var updated DueDateSchedule
		if err := v.UnmarshalKey("duedates", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateDueDateSchedule(updated); err != nil {
			log.Warn("invalid schedule ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("due date schedule reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *DueDateScheduleHolder) Get() DueDateSchedule {
	return h.current.Load().(DueDateSchedule)
}

func validateDueDateSchedule(cfg DueDateSchedule) error {
	if len(cfg.Entries) == 0 {
		return errors.New("duedates.entries cannot be empty")
	}
	for i, entry := range cfg.Entries {
		if entry.Month < 1 || entry.Month > 12 {
			return fmt.Errorf("duedates.entries[%d]: invalid month %d", i, entry.Month)
		}
		// 2024 is a leap year, so Feb 29 is accepted here.
		checked := time.Date(2024, time.Month(entry.Month), entry.Day, 0, 0, 0, 0, time.UTC)
		if entry.Day < 1 || checked.Day() != entry.Day {
			return fmt.Errorf("duedates.entries[%d]: invalid day %d for month %d", i, entry.Day, entry.Month)
		}
		if entry.YearOffset < 0 {
			return fmt.Errorf("duedates.entries[%d]: year_offset must not be negative", i)
		}
	}
	return nil
}
