package sla

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deskflow/helpdesk/internal/config"
)

// ErrNoBusinessTime is returned when a walk finds no working minutes for
// longer than a year, which means the calendar is unusable.
var ErrNoBusinessTime = errors.New("business calendar has no working time")

const (
	dateLayout  = "2006-01-02"
	maxIdleDays = 366
)

// Calendar is the business calendar provider consulted by SLAClock.
type Calendar interface {
	Now() time.Time
	// Advance returns the instant reached after consuming minutes of
	// business time starting at from.
	Advance(from time.Time, minutes int) (time.Time, error)
}

// BusinessHours is a weekly working-hours definition with holidays.
// Open and Close are minutes after local midnight.
type BusinessHours struct {
	Location *time.Location
	Open     int
	Close    int
	Workdays map[time.Weekday]bool
	Holidays map[string]bool
}

// BusinessCalendar implements Calendar over BusinessHours.
type BusinessCalendar struct {
	clock Clock
	hours BusinessHours
}

// NewBusinessCalendar validates hours and returns a calendar.
func NewBusinessCalendar(clock Clock, hours BusinessHours) (*BusinessCalendar, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if hours.Location == nil {
		hours.Location = time.UTC
	}
	if hours.Open < 0 || hours.Close > 24*60 || hours.Open >= hours.Close {
		return nil, fmt.Errorf("invalid business hours %s-%s", formatMinute(hours.Open), formatMinute(hours.Close))
	}
	workdays := 0
	for _, on := range hours.Workdays {
		if on {
			workdays++
		}
	}
	if workdays == 0 {
		return nil, errors.New("business calendar needs at least one workday")
	}
	return &BusinessCalendar{clock: clock, hours: hours}, nil
}

// Now returns the current time from the underlying clock.
func (c *BusinessCalendar) Now() time.Time {
	return c.clock.Now()
}

// Advance walks forward day by day, consuming only minutes inside working
// hours on workdays that are not holidays.
func (c *BusinessCalendar) Advance(from time.Time, minutes int) (time.Time, error) {
	if minutes < 0 {
		return time.Time{}, fmt.Errorf("negative business minutes %d", minutes)
	}
	if minutes == 0 {
		return from, nil
	}

	loc := c.hours.Location
	remaining := time.Duration(minutes) * time.Minute
	cursor := from.In(loc)
	idle := 0

	for {
		y, m, d := cursor.Date()
		if c.isWorkday(cursor) {
			open := time.Date(y, m, d, 0, c.hours.Open, 0, 0, loc)
			closing := time.Date(y, m, d, 0, c.hours.Close, 0, 0, loc)
			if cursor.Before(open) {
				cursor = open
			}
			if cursor.Before(closing) {
				available := closing.Sub(cursor)
				if remaining <= available {
					return cursor.Add(remaining).In(from.Location()), nil
				}
				remaining -= available
				idle = 0
			} else {
				idle++
			}
		} else {
			idle++
		}
		if idle > maxIdleDays {
			return time.Time{}, ErrNoBusinessTime
		}
		cursor = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
}

// IsBusinessTime reports whether t falls inside working hours.
func (c *BusinessCalendar) IsBusinessTime(t time.Time) bool {
	local := t.In(c.hours.Location)
	if !c.isWorkday(local) {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= c.hours.Open && minute < c.hours.Close
}

func (c *BusinessCalendar) isWorkday(local time.Time) bool {
	return c.hours.Workdays[local.Weekday()] && !c.hours.Holidays[local.Format(dateLayout)]
}

// CalendarDefinition is the serialized calendar definition, read from YAML or
// assembled from environment settings.
type CalendarDefinition struct {
	Timezone string   `yaml:"timezone"`
	Open     string   `yaml:"open"`
	Close    string   `yaml:"close"`
	Workdays []string `yaml:"workdays"`
	Holidays []string `yaml:"holidays"`
}

// LoadCalendarFile reads a CalendarDefinition from a YAML file.
func LoadCalendarFile(path string) (CalendarDefinition, error) {
	var def CalendarDefinition
	raw, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("read calendar %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return def, fmt.Errorf("parse calendar %s: %w", path, err)
	}
	return def, nil
}

// DefinitionFromConfig builds a CalendarDefinition from environment configuration.
// A configured file takes precedence over the inline settings.
func DefinitionFromConfig(cfg config.CalendarConfig) (CalendarDefinition, error) {
	if cfg.File != "" {
		return LoadCalendarFile(cfg.File)
	}
	return CalendarDefinition{
		Timezone: cfg.Timezone,
		Open:     cfg.Open,
		Close:    cfg.Close,
		Workdays: cfg.Workdays,
		Holidays: cfg.Holidays,
	}, nil
}

// Hours converts the definition into validated BusinessHours.
func (s CalendarDefinition) Hours() (BusinessHours, error) {
	hours := BusinessHours{
		Location: time.UTC,
		Workdays: make(map[time.Weekday]bool),
		Holidays: make(map[string]bool),
	}
	if tz := strings.TrimSpace(s.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return hours, fmt.Errorf("calendar timezone: %w", err)
		}
		hours.Location = loc
	}

	var err error
	if hours.Open, err = ParseClock(defaultString(s.Open, "09:00")); err != nil {
		return hours, err
	}
	if hours.Close, err = ParseClock(defaultString(s.Close, "18:00")); err != nil {
		return hours, err
	}

	workdays := s.Workdays
	if len(workdays) == 0 {
		workdays = []string{"mon", "tue", "wed", "thu", "fri"}
	}
	for _, name := range workdays {
		day, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return hours, fmt.Errorf("calendar workday %q not recognized", name)
		}
		hours.Workdays[day] = true
	}

	for _, raw := range s.Holidays {
		day, err := time.Parse(dateLayout, strings.TrimSpace(raw))
		if err != nil {
			return hours, fmt.Errorf("calendar holiday %q: %w", raw, err)
		}
		hours.Holidays[day.Format(dateLayout)] = true
	}
	return hours, nil
}

// NewCalendarFromConfig resolves the configured calendar.
func NewCalendarFromConfig(clock Clock, cfg config.CalendarConfig) (*BusinessCalendar, error) {
	def, err := DefinitionFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	hours, err := def.Hours()
	if err != nil {
		return nil, err
	}
	return NewBusinessCalendar(clock, hours)
}

// ParseClock converts "HH:MM" into minutes after midnight. "24:00" is
// accepted as end of day.
func ParseClock(v string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		if strings.TrimSpace(v) == "24:00" {
			return 24 * 60, nil
		}
		return 0, fmt.Errorf("invalid clock value %q", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}
