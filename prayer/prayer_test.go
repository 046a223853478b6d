package prayer

import (
	"context"
	"testing"
	"time"

	"github.com/deentrack/deentrack/lib/apierr"
	"github.com/deentrack/deentrack/models"
	"github.com/deentrack/deentrack/storage/memory"
	storage "github.com/deentrack/deentrack/storage/persistent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testDay = "2025-03-10"

var testClock = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) storage.StorageInterface {
	t.Helper()
	store := memory.NewMemoryStorage()
	Init(store, nil)
	return store
}

func addUser(t *testing.T, store storage.StorageInterface, user *models.User) *models.User {
	t.Helper()
	if user.Username == "" {
		user.Username = "tester_" + primitive.NewObjectID().Hex()
	}
	if user.Email == "" {
		user.Email = user.Username + "@example.com"
	}
	if user.Level == 0 {
		user.Level = 1
	}
	created, err := store.AddUser(context.Background(), user)
	require.NoError(t, err)
	return created
}

func prayersFor(names map[string]bool) []models.Prayer {
	prayers := make([]models.Prayer, 0, len(Names))
	for _, name := range Names {
		prayers = append(prayers, models.Prayer{
			PrayerName:  name,
			IsCompleted: names[name],
			Date:        testDay,
		})
	}
	return prayers
}

func allMandatoryDone() map[string]bool {
	done := map[string]bool{}
	for _, name := range Names {
		if name != OptionalPrayer {
			done[name] = true
		}
	}
	return done
}

func TestEnsureTodayLoggedCreatesSixRecords(t *testing.T) {
	store := setup(t)
	user := addUser(t, store, &models.User{})
	ctx := context.Background()

	prayers, created, err := EnsureTodayLogged(ctx, user.ID, testDay, testClock)
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, prayers, 6)

	seen := map[string]bool{}
	for _, p := range prayers {
		assert.Equal(t, testDay, p.Date)
		assert.False(t, p.IsCompleted)
		seen[p.PrayerName] = true
	}
	for _, name := range Names {
		assert.True(t, seen[name], "missing prayer %s", name)
	}
}

func TestEnsureTodayLoggedIsIdempotent(t *testing.T) {
	store := setup(t)
	user := addUser(t, store, &models.User{})
	ctx := context.Background()

	first, created, err := EnsureTodayLogged(ctx, user.ID, testDay, testClock)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := EnsureTodayLogged(ctx, user.ID, testDay, testClock)
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, second, 6)

	ids := func(prayers []models.Prayer) []primitive.ObjectID {
		out := make([]primitive.ObjectID, len(prayers))
		for i, p := range prayers {
			out[i] = p.ID
		}
		return out
	}
	assert.ElementsMatch(t, ids(first), ids(second))
}

func TestTodayWithoutLog(t *testing.T) {
	store := setup(t)
	user := addUser(t, store, &models.User{})

	_, err := Today(context.Background(), user.ID, testDay)
	assert.True(t, apierr.Is(err, apierr.KindNotFound))
}

func TestApplyRewardMandatoryOnly(t *testing.T) {
	user := &models.User{Level: 1}
	badges, rewarded := ApplyReward(user, prayersFor(allMandatoryDone()), testDay, testClock)

	assert.True(t, rewarded)
	assert.Empty(t, badges)
	assert.Equal(t, 10, user.DailyScore)
	assert.Equal(t, 50, user.XP)
	assert.Equal(t, 1, user.Level)
	assert.Equal(t, 1, user.StreakCount)
	assert.Equal(t, testDay, user.LastRewardDate)
	require.NotNil(t, user.LastActivity)
}

func TestApplyRewardWithTahajjudBonus(t *testing.T) {
	done := allMandatoryDone()
	done[OptionalPrayer] = true
	user := &models.User{Level: 1}

	_, rewarded := ApplyReward(user, prayersFor(done), testDay, testClock)
	require.True(t, rewarded)
	assert.Equal(t, 15, user.DailyScore)
	assert.Equal(t, 70, user.XP)
}

func TestApplyRewardRequiresAllMandatory(t *testing.T) {
	done := allMandatoryDone()
	done["Fajar"] = false
	// Tahajjud alone never substitutes for a mandatory prayer.
	done[OptionalPrayer] = true
	user := &models.User{Level: 1}

	_, rewarded := ApplyReward(user, prayersFor(done), testDay, testClock)
	assert.False(t, rewarded)
	assert.Equal(t, 0, user.DailyScore)
	assert.Equal(t, 0, user.StreakCount)
}

func TestApplyRewardOncePerDay(t *testing.T) {
	user := &models.User{Level: 1}
	prayers := prayersFor(allMandatoryDone())

	_, rewarded := ApplyReward(user, prayers, testDay, testClock)
	require.True(t, rewarded)

	_, rewarded = ApplyReward(user, prayers, testDay, testClock)
	assert.False(t, rewarded)
	assert.Equal(t, 10, user.DailyScore)
	assert.Equal(t, 1, user.StreakCount)
}

func TestApplyRewardSingleStepLevelUp(t *testing.T) {
	user := &models.User{Level: 1, XP: 60}

	_, rewarded := ApplyReward(user, prayersFor(allMandatoryDone()), testDay, testClock)
	require.True(t, rewarded)
	assert.Equal(t, 2, user.Level)
	assert.Equal(t, 0, user.XP)
}

func TestApplyRewardLevelRequirementGrows(t *testing.T) {
	// At level 2 the threshold is 200; 60+50 XP is not enough.
	user := &models.User{Level: 2, XP: 60}

	_, rewarded := ApplyReward(user, prayersFor(allMandatoryDone()), testDay, testClock)
	require.True(t, rewarded)
	assert.Equal(t, 2, user.Level)
	assert.Equal(t, 110, user.XP)
}

func TestApplyRewardStreakContinues(t *testing.T) {
	user := &models.User{Level: 1, StreakCount: 4, LastRewardDate: "2025-03-09"}

	_, rewarded := ApplyReward(user, prayersFor(allMandatoryDone()), testDay, testClock)
	require.True(t, rewarded)
	assert.Equal(t, 5, user.StreakCount)
}

func TestApplyRewardStreakResetsAfterGap(t *testing.T) {
	// Last rewarded three days ago: today starts a new streak at 1.
	user := &models.User{Level: 1, StreakCount: 5, LastRewardDate: "2025-03-07"}

	_, rewarded := ApplyReward(user, prayersFor(allMandatoryDone()), testDay, testClock)
	require.True(t, rewarded)
	assert.Equal(t, 1, user.StreakCount)
}

func TestApplyRewardWeeklyBadgeAtExactlySeven(t *testing.T) {
	user := &models.User{Level: 1, StreakCount: 6, LastRewardDate: "2025-03-09"}

	badges, rewarded := ApplyReward(user, prayersFor(allMandatoryDone()), testDay, testClock)
	require.True(t, rewarded)
	assert.Equal(t, 7, user.StreakCount)
	assert.Equal(t, []string{"Weekly Prayers Streak"}, badges)
	assert.Contains(t, user.Badges, "Weekly Prayers Streak")
}

func TestApplyRewardBadgeNotDuplicated(t *testing.T) {
	user := &models.User{
		Level:          1,
		StreakCount:    6,
		LastRewardDate: "2025-03-09",
		Badges:         []string{"Weekly Prayers Streak"},
	}

	badges, rewarded := ApplyReward(user, prayersFor(allMandatoryDone()), testDay, testClock)
	require.True(t, rewarded)
	assert.Empty(t, badges)
	assert.Len(t, user.Badges, 1)
}

func TestApplyRewardNoBadgeBetweenThresholds(t *testing.T) {
	user := &models.User{Level: 1, StreakCount: 7, LastRewardDate: "2025-03-09"}

	badges, rewarded := ApplyReward(user, prayersFor(allMandatoryDone()), testDay, testClock)
	require.True(t, rewarded)
	assert.Equal(t, 8, user.StreakCount)
	assert.Empty(t, badges)
}

func TestMarkCompleteRewardsOnLastMandatoryPrayer(t *testing.T) {
	store := setup(t)
	user := addUser(t, store, &models.User{})
	ctx := context.Background()

	prayers, _, err := EnsureTodayLogged(ctx, user.ID, testDay, testClock)
	require.NoError(t, err)

	for _, p := range prayers {
		if p.PrayerName == OptionalPrayer {
			continue
		}
		_, err := MarkComplete(ctx, user.ID, p.ID, testDay, testClock)
		require.NoError(t, err)
	}

	updated, err := store.FindUser(ctx, bson.M{"_id": user.ID})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.DailyScore)
	assert.Equal(t, 50, updated.XP)
	assert.Equal(t, 1, updated.StreakCount)
	assert.Equal(t, testDay, updated.LastRewardDate)
}

func TestMarkCompleteIsIdempotentForTheDay(t *testing.T) {
	store := setup(t)
	user := addUser(t, store, &models.User{})
	ctx := context.Background()

	prayers, _, err := EnsureTodayLogged(ctx, user.ID, testDay, testClock)
	require.NoError(t, err)

	var lastMandatory models.Prayer
	for _, p := range prayers {
		if p.PrayerName == OptionalPrayer {
			continue
		}
		lastMandatory = p
		_, err := MarkComplete(ctx, user.ID, p.ID, testDay, testClock)
		require.NoError(t, err)
	}

	// Completing an already-completed prayer re-evaluates the reward but
	// must not grant it twice.
	_, err = MarkComplete(ctx, user.ID, lastMandatory.ID, testDay, testClock)
	require.NoError(t, err)

	updated, err := store.FindUser(ctx, bson.M{"_id": user.ID})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.DailyScore)
	assert.Equal(t, 50, updated.XP)
	assert.Equal(t, 1, updated.StreakCount)
}

func TestMarkCompleteUnknownPrayer(t *testing.T) {
	store := setup(t)
	user := addUser(t, store, &models.User{})

	_, err := MarkComplete(context.Background(), user.ID, primitive.NewObjectID(), testDay, testClock)
	assert.True(t, apierr.Is(err, apierr.KindNotFound))
}

func TestMarkCompleteEnforcesOwnership(t *testing.T) {
	store := setup(t)
	owner := addUser(t, store, &models.User{})
	intruder := addUser(t, store, &models.User{})
	ctx := context.Background()

	prayers, _, err := EnsureTodayLogged(ctx, owner.ID, testDay, testClock)
	require.NoError(t, err)

	_, err = MarkComplete(ctx, intruder.ID, prayers[0].ID, testDay, testClock)
	assert.True(t, apierr.Is(err, apierr.KindNotFound))
}
