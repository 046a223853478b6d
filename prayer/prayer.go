// Package prayer implements the daily prayer log and the reward engine
// that turns a fully-completed day of mandatory prayers into XP, level,
// streak and badge changes on the user aggregate.
package prayer

import (
	"context"
	"log"
	"time"

	"github.com/deentrack/deentrack/habit"
	"github.com/deentrack/deentrack/lib/apierr"
	"github.com/deentrack/deentrack/models"
	"github.com/deentrack/deentrack/queue"
	storage "github.com/deentrack/deentrack/storage/persistent"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Names is the fixed prayer enumeration. Tahajjud is optional; the other
// five are mandatory for the daily reward.
var Names = []string{"Fajar", "Dhuhr", "Asr", "Maghrib", "Isha", "Tahajjud"}

// OptionalPrayer is excluded from the mandatory set and from streaks; it
// only contributes bonus points when completed.
const OptionalPrayer = "Tahajjud"

// Badge thresholds, triggered on exact streak equality only. A user whose
// streak jumps past a threshold does not receive the badge retroactively.
const (
	weeklyBadge    = "Weekly Prayers Streak"
	monthlyBadge   = "Monthly Prayers Streak"
	legendaryBadge = "Legendary Streak"
)

// store is a package-level handle to the storage system, set by Init.
var store storage.StorageInterface

// notifications carries badge congratulation messages; nil disables them.
var notifications *queue.Queue

// Init wires the prayer service to a storage backend and an optional
// notification queue. It must be called before any other function in this
// package.
func Init(s storage.StorageInterface, q *queue.Queue) {
	store = s
	notifications = q
}

// EnsureTodayLogged creates today's six prayer records for the user if
// they do not exist yet, one per name in the fixed enumeration, all
// uncompleted. The call is idempotent: existing records are returned
// unchanged and never duplicated. The unique (user, prayer, date) index
// backs this against concurrent first-of-day requests; the loser of that
// race simply re-reads.
func EnsureTodayLogged(ctx context.Context, userID primitive.ObjectID, today string, now time.Time) ([]models.Prayer, bool, error) {
	filter := bson.M{"user_id": userID, "date": today}

	existing, err := store.FindPrayersByParameter(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return existing, false, nil
	}

	prayers := make([]models.Prayer, len(Names))
	for i, name := range Names {
		prayers[i] = models.Prayer{
			UserID:      userID,
			PrayerName:  name,
			IsCompleted: false,
			Date:        today,
			CreatedAt:   now,
		}
	}

	created, err := store.AddPrayers(ctx, prayers)
	if err != nil {
		if storage.IsDuplicateKey(err) {
			existing, err := store.FindPrayersByParameter(ctx, filter)
			return existing, false, err
		}
		return nil, false, err
	}
	return created, true, nil
}

// Today returns the user's prayer records for the given date.
func Today(ctx context.Context, userID primitive.ObjectID, today string) ([]models.Prayer, error) {
	prayers, err := store.FindPrayersByParameter(ctx, bson.M{"user_id": userID, "date": today})
	if err != nil {
		return nil, err
	}
	if len(prayers) == 0 {
		return nil, apierr.NotFound("no prayers logged for today")
	}
	return prayers, nil
}

// MarkComplete sets one prayer record completed, then evaluates the daily
// reward over all of today's records. The reward is granted at most once
// per calendar day regardless of how many times the evaluation re-fires.
func MarkComplete(ctx context.Context, userID, prayerID primitive.ObjectID, today string, now time.Time) (*models.Prayer, error) {
	filter := bson.M{"_id": prayerID, "user_id": userID}
	prayer, err := store.FindPrayer(ctx, filter)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apierr.NotFound("prayer not found")
		}
		return nil, err
	}

	if !prayer.IsCompleted {
		if _, err := store.UpdatePrayer(ctx, filter, bson.M{"$set": bson.M{"is_completed": true}}); err != nil {
			return nil, err
		}
		prayer.IsCompleted = true
	}

	if err := evaluateReward(ctx, userID, today, now); err != nil {
		return nil, err
	}

	return prayer, nil
}

// evaluateReward inspects all of today's records and, when every mandatory
// prayer is completed and the user has not been rewarded today, applies
// the reward to the user aggregate exactly once and persists it. The
// already-rewarded case is an expected idempotency outcome, not an error.
func evaluateReward(ctx context.Context, userID primitive.ObjectID, today string, now time.Time) error {
	prayers, err := store.FindPrayersByParameter(ctx, bson.M{"user_id": userID, "date": today})
	if err != nil {
		return err
	}

	user, err := store.FindUser(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}

	newBadges, rewarded := ApplyReward(user, prayers, today, now)
	if !rewarded {
		return nil
	}

	update := bson.M{"$set": bson.M{
		"daily_score":      user.DailyScore,
		"xp":               user.XP,
		"level":            user.Level,
		"streak_count":     user.StreakCount,
		"badges":           user.Badges,
		"last_reward_date": user.LastRewardDate,
		"last_activity":    user.LastActivity,
	}}
	if _, err := store.UpdateUser(ctx, bson.M{"_id": userID}, update); err != nil {
		return err
	}

	for _, badge := range newBadges {
		notifyBadge(user, badge, today)
	}
	return nil
}

// ApplyReward mutates the user aggregate in memory according to the daily
// reward rules and reports any newly earned badges. It does not persist
// anything, which keeps the read-modify-decide-write sequence testable in
// isolation.
//
// Rules: +10 score / +50 XP when all five mandatory prayers are done, plus
// +5 / +20 when Tahajjud is also done. The level check is a single step:
// one level per reward event, even though rewards are currently capped
// below two thresholds. The streak increments only when yesterday was also
// rewarded; any gap resets it to 1, today being day one of the new streak.
func ApplyReward(user *models.User, prayers []models.Prayer, today string, now time.Time) (newBadges []string, rewarded bool) {
	if user.LastRewardDate == today {
		return nil, false
	}

	tahajjudDone := false
	mandatoryTotal := 0
	mandatoryDone := 0
	for _, p := range prayers {
		if p.PrayerName == OptionalPrayer {
			tahajjudDone = p.IsCompleted
			continue
		}
		mandatoryTotal++
		if p.IsCompleted {
			mandatoryDone++
		}
	}
	if mandatoryTotal == 0 || mandatoryDone != mandatoryTotal {
		return nil, false
	}

	user.DailyScore += 10
	user.XP += 50
	if tahajjudDone {
		user.DailyScore += 5
		user.XP += 20
	}

	if user.XP >= user.Level*100 {
		user.Level++
		user.XP = 0
	}

	if user.LastRewardDate == yesterday(today) {
		user.StreakCount++
	} else {
		user.StreakCount = 1
	}

	for _, candidate := range []struct {
		streak int
		badge  string
	}{
		{7, weeklyBadge},
		{30, monthlyBadge},
		{100, legendaryBadge},
	} {
		if user.StreakCount == candidate.streak && !hasBadge(user, candidate.badge) {
			user.Badges = append(user.Badges, candidate.badge)
			newBadges = append(newBadges, candidate.badge)
		}
	}

	lastActivity := now
	user.LastRewardDate = today
	user.LastActivity = &lastActivity
	return newBadges, true
}

func hasBadge(user *models.User, badge string) bool {
	for _, b := range user.Badges {
		if b == badge {
			return true
		}
	}
	return false
}

func yesterday(today string) string {
	day, err := time.Parse(habit.DateLayout, today)
	if err != nil {
		return ""
	}
	return day.AddDate(0, 0, -1).Format(habit.DateLayout)
}

// notifyBadge publishes a congratulation message for an earned badge. The
// reward is already persisted at this point; losing a notification is an
// accepted risk.
func notifyBadge(user *models.User, badge, today string) {
	if notifications == nil {
		return
	}
	msg := &queue.Message{
		Id:    user.ID.Hex() + "_" + badge + "_" + today,
		To:    user.Email,
		Badge: badge,
	}
	if err := queue.ProcessNotification(msg, notifications); err != nil {
		log.Printf("failed to publish badge notification: %v", err)
	}
}
