package service

import (
	"time"

	"github.com/smallbiznis/taxtracker/internal/config"
	taxdomain "github.com/smallbiznis/taxtracker/internal/taxrecord/domain"
)

const dueDateLayout = "2006-01-02"

type calendar struct {
	schedule *config.DueDateScheduleHolder
}

func NewCalendar(schedule *config.DueDateScheduleHolder) taxdomain.DueDateCalendar {
	return &calendar{schedule: schedule}
}

// DueDates renders the schedule for the calendar year of now. Days past the
// end of a month are clamped, so Feb 29 becomes Feb 28 outside leap years.
func (c *calendar) DueDates(now time.Time) []string {
	schedule := config.DefaultDueDateSchedule()
	if c.schedule != nil {
		schedule = c.schedule.Get()
	}

	out := make([]string, 0, len(schedule.Entries))
	for _, entry := range schedule.Entries {
		year := now.Year() + entry.YearOffset
		month := time.Month(entry.Month)
		day := entry.Day
		if last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day(); day > last {
			day = last
		}
		out = append(out, time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(dueDateLayout))
	}
	return out
}
