package services

import (
	"time"

	"financas/internal/core"
)

// NextDueDate returns the first date on or after now's calendar day when a
// bill with the given due day falls due. Due days past the end of a month
// are clamped to its last day, so a bill due on the 31st is due on
// 30 April and 28 or 29 February.
func NextDueDate(dueDay int, now time.Time) core.Date {
	today := core.DateOf(now)
	due := dueIn(today.Year(), today.Month(), dueDay)
	if due.Before(today.Time) {
		y, m := today.Year(), today.Month()+1
		if m > 12 {
			y, m = y+1, 1
		}
		due = dueIn(y, m, dueDay)
	}
	return due
}

func dueIn(year, month, dueDay int) core.Date {
	last := daysIn(year, month)
	if dueDay > last {
		dueDay = last
	}
	if dueDay < 1 {
		dueDay = 1
	}
	return core.NewDate(year, month, dueDay)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// daysBetween counts whole calendar days from a to b.
func daysBetween(a, b core.Date) int {
	return int(b.Sub(a.Time).Hours() / 24)
}
