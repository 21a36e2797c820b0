// Package cron parses the five field cron expressions that can drive the
// daemon instead of a fixed poll interval.
package cron

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrInvalidCronExpression = errors.New("invalid cron expression")
	ErrInvalidTimezone       = errors.New("invalid timezone")
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Schedule struct {
	spec cron.Schedule
	loc  *time.Location
}

// Parse accepts expressions such as "*/15 * * * *" or "@hourly". An empty
// timezone means UTC.
func Parse(expr, timezone string) (*Schedule, error) {
	if expr == "" {
		return nil, ErrInvalidCronExpression
	}

	spec, err := parser.Parse(expr)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronExpression, err)
	}

	loc := time.UTC
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTimezone, err)
		}
	}

	return &Schedule{
		spec: spec,
		loc:  loc,
	}, nil
}

func Validate(expr string) error {
	_, err := Parse(expr, "")

	return err
}

// Next returns the first activation after from, or the zero time if the
// expression never fires again.
func (s *Schedule) Next(from time.Time) time.Time {
	return s.spec.Next(from.In(s.loc))
}
