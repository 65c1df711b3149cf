package trigger

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Built-in trigger kinds
const (
	KindCron     = "cron"
	KindInterval = "interval"
	KindDate     = "date"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Cron fires on a standard five-field cron expression
type Cron struct {
	Expr     string `json:"expr" yaml:"expr"`
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

func (c *Cron) Kind() string { return KindCron }

func (c *Cron) Validate() error {
	_, err := c.Schedule()
	return err
}

// Schedule parses the expression into a robfig/cron schedule
func (c *Cron) Schedule() (cron.Schedule, error) {
	expr := c.Expr
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return nil, fmt.Errorf("invalid cron timezone %q: %w", c.Timezone, err)
		}
		expr = "CRON_TZ=" + c.Timezone + " " + expr
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", c.Expr, err)
	}
	return schedule, nil
}

// Interval fires every Seconds seconds starting at Start
type Interval struct {
	Seconds int64     `json:"seconds" yaml:"seconds"`
	Start   time.Time `json:"start" yaml:"start"`
}

func (i *Interval) Kind() string { return KindInterval }

func (i *Interval) Validate() error {
	if i.Seconds <= 0 {
		return fmt.Errorf("interval must be positive, got %d seconds", i.Seconds)
	}
	return nil
}

// Every returns the interval as a duration
func (i *Interval) Every() time.Duration {
	return time.Duration(i.Seconds) * time.Second
}

// Date fires once at At
type Date struct {
	At time.Time `json:"at" yaml:"at"`
}

func (d *Date) Kind() string { return KindDate }

func (d *Date) Validate() error {
	if d.At.IsZero() {
		return fmt.Errorf("date trigger requires a run time")
	}
	return nil
}
