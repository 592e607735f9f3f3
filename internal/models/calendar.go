// Package models defines the persisted entities shared across Harvester
// services and storage backends.
package models

import (
	"fmt"
	"time"
)

// DateStatus classifies a calendar date as a trading or non-trading day.
type DateStatus string

const (
	DateStatusOpen   DateStatus = "OPEN"
	DateStatusClosed DateStatus = "CLOSED"
)

// TaskGroup tags a calendar date with the job group that runs on it.
type TaskGroup string

const (
	TaskGroupStop     TaskGroup = "STOP"
	TaskGroupInit     TaskGroup = "INIT"
	TaskGroupSecurity TaskGroup = "SECURITY"
)

// CalendarDate is one classified calendar date. Rows are created once by
// the calendar generator and never mutated afterwards.
type CalendarDate struct {
	Year      int `badgerhold:"index"`
	Month     int
	Day       int
	Status    DateStatus
	TaskGroup TaskGroup
	CreatedAt time.Time
}

// Key returns the unique store key for the date, e.g. "2024-01-31".
func (c CalendarDate) Key() string {
	return fmt.Sprintf("%04d-%02d-%02d", c.Year, c.Month, c.Day)
}

// Date returns the calendar date as a UTC time at midnight.
func (c CalendarDate) Date() time.Time {
	return time.Date(c.Year, time.Month(c.Month), c.Day, 0, 0, 0, 0, time.UTC)
}

// DateKey formats a time as a calendar store key.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
