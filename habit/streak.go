package habit

import (
	"sort"

	"github.com/deentrack/deentrack/models"
)

// ComputeStreaks derives the current and longest streaks from a ledger.
// It is a pure function of the full day-record sequence, recomputed from
// scratch on every call so the stored streak fields are always exactly
// f(ledger).
//
// The longest streak is the length of the longest run of consecutive
// completed records anywhere in the ledger. The current streak counts
// completed records walking backward from today's record; when today is
// not in the ledger's window the current streak is 0.
//
// Callers persisting the result must keep the stored longest streak
// monotone: max(stored, computed). Un-toggling a day may shrink the
// computed longest run, but the stored value never regresses.
func ComputeStreaks(ledger []models.DayRecord, today string) (current, longest int) {
	sorted := make([]models.DayRecord, len(ledger))
	copy(sorted, ledger)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	run := 0
	todayIndex := -1
	for i, record := range sorted {
		if record.Completed {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
		if record.Date == today {
			todayIndex = i
		}
	}

	if todayIndex == -1 {
		return 0, longest
	}
	for i := todayIndex; i >= 0; i-- {
		if !sorted[i].Completed {
			break
		}
		current++
	}
	return current, longest
}
