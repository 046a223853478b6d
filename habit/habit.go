// Package habit implements the habit lifecycle: ledger generation at
// creation, day-completion toggling, streak recomputation, and the one-way
// Active -> Completed transition.
package habit

import (
	"context"
	"strings"
	"time"

	"github.com/deentrack/deentrack/lib/apierr"
	"github.com/deentrack/deentrack/models"
	storage "github.com/deentrack/deentrack/storage/persistent"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// store is a package-level handle to the storage system, set by Init.
var store storage.StorageInterface

// Init wires the habit service to a storage backend. It must be called
// before any other function in this package.
func Init(s storage.StorageInterface) {
	store = s
}

// CreateInput carries the user-supplied fields for a new habit.
type CreateInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Icon         string `json:"icon"`
	StartDate    string `json:"start_date"`
	DurationDays int    `json:"duration_days"`
}

// UpdateInput carries the fields a user may change on an active habit.
// The schedule and the ledger shape are fixed at creation.
type UpdateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Icon        string `json:"icon"`
}

// Create validates the input, generates the full daily ledger and persists
// the new habit. StartDate defaults to the creation date; EndDate is
// StartDate + DurationDays - 1.
func Create(ctx context.Context, userID primitive.ObjectID, in CreateInput, now time.Time) (*models.Habit, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apierr.Validation("title is required")
	}
	if in.DurationDays < 1 {
		return nil, apierr.Validation("duration days must be a positive integer")
	}

	startDate := in.StartDate
	if startDate == "" {
		startDate = Today(now)
	}
	start, err := time.Parse(DateLayout, startDate)
	if err != nil {
		return nil, apierr.Validation("start date must be in YYYY-MM-DD format")
	}

	ledger, err := GenerateLedger(startDate, in.DurationDays)
	if err != nil {
		return nil, err
	}

	habit := &models.Habit{
		UserID:        userID,
		Title:         title,
		Description:   in.Description,
		Category:      in.Category,
		Icon:          in.Icon,
		StartDate:     startDate,
		EndDate:       start.AddDate(0, 0, in.DurationDays-1).Format(DateLayout),
		DurationDays:  in.DurationDays,
		DailyProgress: ledger,
		CurrentStreak: 0,
		LongestStreak: 0,
		IsCompleted:   false,
		CreatedAt:     now,
	}

	return store.AddHabit(ctx, habit)
}

// ListActive returns the user's habits that have not yet completed.
func ListActive(ctx context.Context, userID primitive.ObjectID) ([]models.Habit, error) {
	return store.FindHabitsByParameter(ctx, bson.M{"user_id": userID, "is_completed": false})
}

// ListCompleted returns the user's finished habits, i.e. their history.
func ListCompleted(ctx context.Context, userID primitive.ObjectID) ([]models.Habit, error) {
	return store.FindHabitsByParameter(ctx, bson.M{"user_id": userID, "is_completed": true})
}

// Get returns one habit owned by the user.
func Get(ctx context.Context, userID, habitID primitive.ObjectID) (*models.Habit, error) {
	habit, err := store.FindHabit(ctx, bson.M{"_id": habitID, "user_id": userID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apierr.NotFound("habit not found")
		}
		return nil, err
	}
	return habit, nil
}

// Update changes the cosmetic fields of an active habit. Completed habits
// are terminal and reject edits. At least one field must be provided.
func Update(ctx context.Context, userID, habitID primitive.ObjectID, in UpdateInput) (*models.Habit, error) {
	habit, err := Get(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if habit.IsCompleted {
		return nil, apierr.AlreadyCompleted("completed habits cannot be edited")
	}

	set := bson.M{}
	if title := strings.TrimSpace(in.Title); title != "" {
		set["title"] = title
	}
	if in.Description != "" {
		set["description"] = in.Description
	}
	if in.Category != "" {
		set["category"] = in.Category
	}
	if in.Icon != "" {
		set["icon"] = in.Icon
	}
	if len(set) == 0 {
		return nil, apierr.Validation("at least one field is required")
	}

	filter := bson.M{"_id": habitID, "user_id": userID}
	if _, err := store.UpdateHabit(ctx, filter, bson.M{"$set": set}); err != nil {
		return nil, err
	}
	return store.FindHabit(ctx, filter)
}

// Delete removes a habit owned by the user. There is no soft delete.
func Delete(ctx context.Context, userID, habitID primitive.ObjectID) error {
	result, err := store.DeleteHabit(ctx, bson.M{"_id": habitID, "user_id": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return apierr.NotFound("habit not found")
	}
	return nil
}

// MarkDayComplete toggles today's ledger record, recomputes the streaks,
// and finalizes the habit when every day is completed. The returned flag
// reports whether this call is the one that completed the habit, so the
// REST layer can attach its celebratory response.
//
// The longest streak is persisted as max(stored, recomputed): un-toggling
// progress never shrinks it.
func MarkDayComplete(ctx context.Context, userID, habitID primitive.ObjectID, today string, now time.Time) (*models.Habit, bool, error) {
	habit, err := Get(ctx, userID, habitID)
	if err != nil {
		return nil, false, err
	}
	if habit.IsCompleted {
		return nil, false, apierr.AlreadyCompleted("habit is already completed")
	}

	if !ToggleToday(habit.DailyProgress, today, now) {
		return nil, false, apierr.OutOfRange("today is outside this habit's duration window")
	}

	current, longest := ComputeStreaks(habit.DailyProgress, today)
	if longest < habit.LongestStreak {
		longest = habit.LongestStreak
	}
	habit.CurrentStreak = current
	habit.LongestStreak = longest

	newlyCompleted := false
	if allCompleted(habit.DailyProgress) {
		completedAt := now
		habit.IsCompleted = true
		habit.CompletedAt = &completedAt
		newlyCompleted = true
	}

	update := bson.M{"$set": bson.M{
		"daily_progress": habit.DailyProgress,
		"current_streak": habit.CurrentStreak,
		"longest_streak": habit.LongestStreak,
		"is_completed":   habit.IsCompleted,
		"completed_at":   habit.CompletedAt,
	}}
	filter := bson.M{"_id": habitID, "user_id": userID}
	if _, err := store.UpdateHabit(ctx, filter, update); err != nil {
		return nil, false, err
	}

	return habit, newlyCompleted, nil
}
