package habit

import (
	"time"

	"github.com/deentrack/deentrack/models"
)

// DateLayout is the calendar-date format used for every date key in the
// system (habit ledgers, prayer records, reward guards).
const DateLayout = "2006-01-02"

// Today formats a wall-clock instant as a calendar date key.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// GenerateLedger produces durationDays consecutive day records starting at
// startDate, all uncompleted. It is a pure function: the same inputs always
// yield the same ledger, and the ledger is never resized after creation.
func GenerateLedger(startDate string, durationDays int) ([]models.DayRecord, error) {
	start, err := time.Parse(DateLayout, startDate)
	if err != nil {
		return nil, err
	}
	ledger := make([]models.DayRecord, durationDays)
	for i := range ledger {
		ledger[i] = models.DayRecord{
			Date:      start.AddDate(0, 0, i).Format(DateLayout),
			Completed: false,
		}
	}
	return ledger, nil
}

// ToggleToday flips the completion state of the record whose date equals
// today, in place. CompletedAt is set to now when completing and cleared
// when un-completing. Only today's record is ever mutated; past and future
// records stay immutable through this path, which is what rules out
// retroactive streak manipulation. Returns false when today falls outside
// the ledger's window.
func ToggleToday(ledger []models.DayRecord, today string, now time.Time) bool {
	for i := range ledger {
		if ledger[i].Date != today {
			continue
		}
		if ledger[i].Completed {
			ledger[i].Completed = false
			ledger[i].CompletedAt = nil
		} else {
			completedAt := now
			ledger[i].Completed = true
			ledger[i].CompletedAt = &completedAt
		}
		return true
	}
	return false
}

// allCompleted reports whether every record in the ledger is completed.
// An empty ledger is never considered complete.
func allCompleted(ledger []models.DayRecord) bool {
	if len(ledger) == 0 {
		return false
	}
	for _, record := range ledger {
		if !record.Completed {
			return false
		}
	}
	return true
}
