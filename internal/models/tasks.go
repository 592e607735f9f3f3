package models

import (
	"fmt"
	"strconv"
	"time"
)

// ExecStatus is the lifecycle state of a daily task.
type ExecStatus string

const (
	ExecStatusWait ExecStatus = "WAIT"
	ExecStatusOpen ExecStatus = "OPEN"
	ExecStatusExec ExecStatus = "EXEC"
	ExecStatusExit ExecStatus = "EXIT"
	ExecStatusStop ExecStatus = "STOP"
)

// Terminal reports whether the status marks completed work that must never
// be re-queued.
func (s ExecStatus) Terminal() bool {
	return s == ExecStatusExit
}

// DailyTask is one unit of pipeline work for a trading date. At most one
// active row exists per (OpenDate, JobCode).
type DailyTask struct {
	ID         string
	OpenDate   string `badgerhold:"index"` // "2006-01-02"
	JobCode    string `badgerhold:"index"`
	GroupCode  string
	SortOrder  int
	ExecStatus ExecStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MarketType identifies one of the three supported trading venues.
type MarketType string

const (
	MarketMain     MarketType = "MAIN"
	MarketOTC      MarketType = "OTC"
	MarketEmerging MarketType = "EMERGING"
)

// SecurityTask is one pending fetch for a (security, month) pair.
// Enabled=false marks permanent completion. RetryCount is the attempt
// counter: tasks at or above the retry ceiling are excluded from selection.
type SecurityTask struct {
	ID             string
	SecurityCode   string `badgerhold:"index"`
	MarketType     MarketType
	IssueDate      time.Time
	FetchPeriodKey string `badgerhold:"index"` // "YYYYMM"
	RandomSeed     int64
	Enabled        bool `badgerhold:"index"`
	SortOrder      int
	RetryCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PeriodYear returns the year component of the fetch period key.
func (t SecurityTask) PeriodYear() int {
	if len(t.FetchPeriodKey) < 4 {
		return 0
	}
	y, err := strconv.Atoi(t.FetchPeriodKey[:4])
	if err != nil {
		return 0
	}
	return y
}

// PeriodKey formats a year and month as a fetch period key.
func PeriodKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d%02d", year, int(month))
}
