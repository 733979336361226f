// Package trigger computes fire times for the three schedule variants. The
// same cron.Schedule returned by CronSchedule is handed to the in-memory
// registry, so the next_run stored at creation time and the registry's own
// first-fire time come from a single code path.
package trigger

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"agentsched/internal/models"
)

var (
	ErrUnknownScheduleType = errors.New("unknown schedule type")
	ErrMissingRunAt        = errors.New("one_time schedule requires run_at")
	ErrInvalidInterval     = errors.New("interval_minutes must be >= 1")
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Location resolves a task's timezone identifier, defaulting to UTC.
func Location(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// CronSchedule parses a standard 5-field cron expression evaluated in the
// given timezone.
func CronSchedule(expr, tz string) (cron.Schedule, error) {
	loc, err := Location(tz)
	if err != nil {
		return nil, err
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if spec, ok := sched.(*cron.SpecSchedule); ok {
		spec.Location = loc
	}
	return sched, nil
}

// IntervalSchedule returns a fixed-delay schedule for interval tasks.
func IntervalSchedule(minutes int) (cron.Schedule, error) {
	if minutes < 1 {
		return nil, ErrInvalidInterval
	}
	return cron.Every(time.Duration(minutes) * time.Minute), nil
}

// oneShotSchedule fires exactly once at a fixed instant. After that instant
// has passed, Next returns the zero time and the registry never fires again.
type oneShotSchedule struct {
	at time.Time
}

func (s oneShotSchedule) Next(t time.Time) time.Time {
	if s.at.After(t) {
		return s.at
	}
	return time.Time{}
}

// Schedule builds the registry schedule for a task's trigger definition.
func Schedule(s models.Schedule) (cron.Schedule, error) {
	switch s.Type {
	case models.ScheduleCron:
		return CronSchedule(s.CronExpression, s.Timezone)
	case models.ScheduleInterval:
		return IntervalSchedule(s.IntervalMinutes)
	case models.ScheduleOneTime:
		if s.RunAt == nil {
			return nil, ErrMissingRunAt
		}
		return oneShotSchedule{at: *s.RunAt}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheduleType, s.Type)
	}
}

// NextRun computes the next fire time strictly after now. For one_time
// schedules this is the configured run_at verbatim; the execution pipeline
// disables the task once it has fired, so a past run_at never re-fires.
func NextRun(s models.Schedule, now time.Time) (time.Time, error) {
	switch s.Type {
	case models.ScheduleCron:
		sched, err := CronSchedule(s.CronExpression, s.Timezone)
		if err != nil {
			return time.Time{}, err
		}
		return sched.Next(now), nil
	case models.ScheduleInterval:
		if s.IntervalMinutes < 1 {
			return time.Time{}, ErrInvalidInterval
		}
		return now.Add(time.Duration(s.IntervalMinutes) * time.Minute), nil
	case models.ScheduleOneTime:
		if s.RunAt == nil {
			return time.Time{}, ErrMissingRunAt
		}
		return *s.RunAt, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownScheduleType, s.Type)
	}
}
