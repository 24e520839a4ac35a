// Package circulation implements the borrow lifecycle: borrowing, returning,
// renewing, fines, and the notification sweeps over the borrow ledger.
package circulation

import (
	"math"
	"time"

	"github.com/mrlokans/elibrary/internal/config"
)

const Day = 24 * time.Hour

// Policy holds the circulation limits.
type Policy struct {
	FinePerDay      float64
	MaxActiveLoans  int
	MaxRenewals     int
	RenewalDays     int
	DefaultLoanDays int
	AdminCanRenew   bool
}

// DefaultPolicy returns the library's standard limits.
func DefaultPolicy() Policy {
	return Policy{
		FinePerDay:      config.DefaultFinePerDay,
		MaxActiveLoans:  config.DefaultMaxActiveLoans,
		MaxRenewals:     config.DefaultMaxRenewals,
		RenewalDays:     config.DefaultRenewalDays,
		DefaultLoanDays: 14,
	}
}

func PolicyFromConfig(cfg config.Circulation) Policy {
	p := DefaultPolicy()
	if cfg.FinePerDay >= 0 {
		p.FinePerDay = cfg.FinePerDay
	}
	if cfg.MaxActiveLoans > 0 {
		p.MaxActiveLoans = cfg.MaxActiveLoans
	}
	if cfg.MaxRenewals >= 0 {
		p.MaxRenewals = cfg.MaxRenewals
	}
	if cfg.RenewalDays > 0 {
		p.RenewalDays = cfg.RenewalDays
	}
	if cfg.DefaultLoanDays > 0 {
		p.DefaultLoanDays = cfg.DefaultLoanDays
	}
	p.AdminCanRenew = cfg.AdminCanRenew
	return p
}

// OverdueDays counts started days past due at the evaluation time.
// Any fraction of a day counts as a whole day.
func OverdueDays(due, at time.Time) int {
	if !at.After(due) {
		return 0
	}
	return ceilDays(at.Sub(due))
}

// CalculateFine returns the fine accrued on a loan due at due, evaluated at at.
func CalculateFine(due, at time.Time, perDay float64) float64 {
	return float64(OverdueDays(due, at)) * perDay
}

// CombineFine merges a computed fine with a manually assessed one.
// The larger amount wins; they are never added.
func CombineFine(computed, manual float64) float64 {
	return math.Max(computed, manual)
}

// DaysUntilDue is the whole number of days left before due, rounded up.
// It is negative once the due date has passed by at least a day.
func DaysUntilDue(now, due time.Time) int {
	return ceilDays(due.Sub(now))
}

func ceilDays(d time.Duration) int {
	days := d / Day
	if d%Day > 0 {
		days++
	}
	return int(days)
}

// ShouldNotifyOverdue throttles overdue notices to day 1, day 7 and every
// 14th day after that.
func ShouldNotifyOverdue(overdueDays int) bool {
	if overdueDays <= 0 {
		return false
	}
	return overdueDays == 1 || overdueDays == 7 || overdueDays%14 == 0
}

// DueSoonWindow returns the due-date range the due-soon sweep covers:
// from the start of the day two days ahead to the end of the day three days ahead.
func DueSoonWindow(now time.Time) (from, to time.Time) {
	return StartOfDay(now.AddDate(0, 0, 2)), EndOfDay(now.AddDate(0, 0, 3))
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}
