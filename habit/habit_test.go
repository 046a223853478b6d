package habit

import (
	"context"
	"testing"
	"time"

	"github.com/deentrack/deentrack/lib/apierr"
	"github.com/deentrack/deentrack/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testUserID = primitive.NewObjectID()

func setup(t *testing.T) {
	t.Helper()
	Init(memory.NewMemoryStorage())
}

func dayClock(date string) time.Time {
	day, _ := time.Parse(DateLayout, date)
	return day.Add(12 * time.Hour)
}

func TestCreateHabit(t *testing.T) {
	setup(t)
	ctx := context.Background()
	now := dayClock("2025-03-01")

	created, err := Create(ctx, testUserID, CreateInput{
		Title:        "Morning run",
		Description:  "5km before work",
		Category:     "fitness",
		DurationDays: 7,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "Morning run", created.Title)
	assert.Equal(t, "2025-03-01", created.StartDate)
	assert.Equal(t, "2025-03-07", created.EndDate)
	assert.Len(t, created.DailyProgress, 7)
	assert.False(t, created.IsCompleted)
	assert.Equal(t, 0, created.CurrentStreak)
}

func TestCreateHabitValidation(t *testing.T) {
	setup(t)
	ctx := context.Background()
	now := dayClock("2025-03-01")

	_, err := Create(ctx, testUserID, CreateInput{Title: "   ", DurationDays: 7}, now)
	assert.True(t, apierr.Is(err, apierr.KindValidation))

	_, err = Create(ctx, testUserID, CreateInput{Title: "Read", DurationDays: 0}, now)
	assert.True(t, apierr.Is(err, apierr.KindValidation))

	_, err = Create(ctx, testUserID, CreateInput{Title: "Read", StartDate: "03/01/2025", DurationDays: 7}, now)
	assert.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestMarkDayCompleteThreeDayScenario(t *testing.T) {
	setup(t)
	ctx := context.Background()

	created, err := Create(ctx, testUserID, CreateInput{Title: "Journal", DurationDays: 3}, dayClock("2025-03-01"))
	require.NoError(t, err)

	// Day 1.
	updated, done, err := MarkDayComplete(ctx, testUserID, created.ID, "2025-03-01", dayClock("2025-03-01"))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, updated.CurrentStreak)
	assert.Equal(t, 1, updated.LongestStreak)

	// Day 2.
	updated, done, err = MarkDayComplete(ctx, testUserID, created.ID, "2025-03-02", dayClock("2025-03-02"))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 2, updated.CurrentStreak)

	// Day 3 finishes the habit.
	updated, done, err = MarkDayComplete(ctx, testUserID, created.ID, "2025-03-03", dayClock("2025-03-03"))
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 3, updated.CurrentStreak)
	assert.Equal(t, 3, updated.LongestStreak)
	assert.True(t, updated.IsCompleted)
	require.NotNil(t, updated.CompletedAt)

	// A completed habit is terminal.
	_, _, err = MarkDayComplete(ctx, testUserID, created.ID, "2025-03-03", dayClock("2025-03-03"))
	assert.True(t, apierr.Is(err, apierr.KindAlreadyCompleted))
}

func TestMarkDayCompleteOutsideWindow(t *testing.T) {
	setup(t)
	ctx := context.Background()

	created, err := Create(ctx, testUserID, CreateInput{Title: "Stretch", DurationDays: 3}, dayClock("2025-03-01"))
	require.NoError(t, err)

	_, _, err = MarkDayComplete(ctx, testUserID, created.ID, "2025-03-10", dayClock("2025-03-10"))
	assert.True(t, apierr.Is(err, apierr.KindOutOfRange))
}

func TestMarkDayCompleteUntoggleKeepsLongestStreak(t *testing.T) {
	setup(t)
	ctx := context.Background()

	created, err := Create(ctx, testUserID, CreateInput{Title: "Meditate", DurationDays: 5}, dayClock("2025-03-01"))
	require.NoError(t, err)

	for _, date := range []string{"2025-03-01", "2025-03-02", "2025-03-03"} {
		_, _, err = MarkDayComplete(ctx, testUserID, created.ID, date, dayClock(date))
		require.NoError(t, err)
	}

	// Un-toggle day 3: current streak drops, longest must not.
	updated, done, err := MarkDayComplete(ctx, testUserID, created.ID, "2025-03-03", dayClock("2025-03-03"))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 0, updated.CurrentStreak)
	assert.Equal(t, 3, updated.LongestStreak)
}

func TestListActiveAndHistory(t *testing.T) {
	setup(t)
	ctx := context.Background()

	first, err := Create(ctx, testUserID, CreateInput{Title: "One day habit", DurationDays: 1}, dayClock("2025-03-01"))
	require.NoError(t, err)
	_, err = Create(ctx, testUserID, CreateInput{Title: "Long habit", DurationDays: 30}, dayClock("2025-03-01"))
	require.NoError(t, err)

	_, done, err := MarkDayComplete(ctx, testUserID, first.ID, "2025-03-01", dayClock("2025-03-01"))
	require.NoError(t, err)
	require.True(t, done)

	active, err := ListActive(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Long habit", active[0].Title)

	history, err := ListCompleted(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "One day habit", history[0].Title)
}

func TestUpdateHabit(t *testing.T) {
	setup(t)
	ctx := context.Background()

	created, err := Create(ctx, testUserID, CreateInput{Title: "Read", DurationDays: 10}, dayClock("2025-03-01"))
	require.NoError(t, err)

	updated, err := Update(ctx, testUserID, created.ID, UpdateInput{Title: "Read more", Category: "learning"})
	require.NoError(t, err)
	assert.Equal(t, "Read more", updated.Title)
	assert.Equal(t, "learning", updated.Category)
	// Schedule is fixed at creation.
	assert.Equal(t, created.StartDate, updated.StartDate)
	assert.Len(t, updated.DailyProgress, 10)

	_, err = Update(ctx, testUserID, created.ID, UpdateInput{})
	assert.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestUpdateCompletedHabitRejected(t *testing.T) {
	setup(t)
	ctx := context.Background()

	created, err := Create(ctx, testUserID, CreateInput{Title: "Sprint", DurationDays: 1}, dayClock("2025-03-01"))
	require.NoError(t, err)
	_, done, err := MarkDayComplete(ctx, testUserID, created.ID, "2025-03-01", dayClock("2025-03-01"))
	require.NoError(t, err)
	require.True(t, done)

	_, err = Update(ctx, testUserID, created.ID, UpdateInput{Title: "Sprint harder"})
	assert.True(t, apierr.Is(err, apierr.KindAlreadyCompleted))
}

func TestDeleteHabit(t *testing.T) {
	setup(t)
	ctx := context.Background()

	created, err := Create(ctx, testUserID, CreateInput{Title: "Temp", DurationDays: 3}, dayClock("2025-03-01"))
	require.NoError(t, err)

	require.NoError(t, Delete(ctx, testUserID, created.ID))

	_, err = Get(ctx, testUserID, created.ID)
	assert.True(t, apierr.Is(err, apierr.KindNotFound))

	err = Delete(ctx, testUserID, created.ID)
	assert.True(t, apierr.Is(err, apierr.KindNotFound))
}

func TestGetHabitEnforcesOwnership(t *testing.T) {
	setup(t)
	ctx := context.Background()

	created, err := Create(ctx, testUserID, CreateInput{Title: "Private", DurationDays: 3}, dayClock("2025-03-01"))
	require.NoError(t, err)

	otherUser := primitive.NewObjectID()
	_, err = Get(ctx, otherUser, created.ID)
	assert.True(t, apierr.Is(err, apierr.KindNotFound))
}
