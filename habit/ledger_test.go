package habit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLedger(t *testing.T) {
	ledger, err := GenerateLedger("2025-03-01", 5)
	require.NoError(t, err)
	require.Len(t, ledger, 5)

	expectedDates := []string{"2025-03-01", "2025-03-02", "2025-03-03", "2025-03-04", "2025-03-05"}
	for i, record := range ledger {
		assert.Equal(t, expectedDates[i], record.Date)
		assert.False(t, record.Completed)
		assert.Nil(t, record.CompletedAt)
	}
}

func TestGenerateLedgerIsDeterministic(t *testing.T) {
	first, err := GenerateLedger("2025-03-01", 30)
	require.NoError(t, err)
	second, err := GenerateLedger("2025-03-01", 30)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerateLedgerCrossesMonthBoundary(t *testing.T) {
	ledger, err := GenerateLedger("2025-02-27", 4)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", ledger[1].Date)
	assert.Equal(t, "2025-03-01", ledger[2].Date)
	assert.Equal(t, "2025-03-02", ledger[3].Date)
}

func TestGenerateLedgerRejectsBadDate(t *testing.T) {
	_, err := GenerateLedger("not-a-date", 5)
	assert.Error(t, err)
}

func TestToggleTodayFlipsOnlyTodaysRecord(t *testing.T) {
	ledger, err := GenerateLedger("2025-03-01", 3)
	require.NoError(t, err)
	now := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

	ok := ToggleToday(ledger, "2025-03-02", now)
	require.True(t, ok)

	assert.False(t, ledger[0].Completed)
	assert.True(t, ledger[1].Completed)
	require.NotNil(t, ledger[1].CompletedAt)
	assert.Equal(t, now, *ledger[1].CompletedAt)
	assert.False(t, ledger[2].Completed)
}

func TestToggleTodayRoundTrip(t *testing.T) {
	ledger, err := GenerateLedger("2025-03-01", 3)
	require.NoError(t, err)
	original, err := GenerateLedger("2025-03-01", 3)
	require.NoError(t, err)

	now := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	require.True(t, ToggleToday(ledger, "2025-03-02", now))
	require.True(t, ToggleToday(ledger, "2025-03-02", now.Add(time.Minute)))

	// Toggling twice restores the ledger exactly.
	assert.Equal(t, original, ledger)
}

func TestToggleTodayOutsideWindow(t *testing.T) {
	ledger, err := GenerateLedger("2025-03-01", 3)
	require.NoError(t, err)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	assert.False(t, ToggleToday(ledger, "2025-03-10", now))
	assert.False(t, ToggleToday(ledger, "2025-02-28", now))
	for _, record := range ledger {
		assert.False(t, record.Completed)
	}
}

func TestAllCompleted(t *testing.T) {
	ledger, err := GenerateLedger("2025-03-01", 2)
	require.NoError(t, err)
	assert.False(t, allCompleted(ledger))

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ToggleToday(ledger, "2025-03-01", now)
	assert.False(t, allCompleted(ledger))

	ToggleToday(ledger, "2025-03-02", now.AddDate(0, 0, 1))
	assert.True(t, allCompleted(ledger))

	assert.False(t, allCompleted(nil))
}
