package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User holds the account identity plus the aggregate gamification state
// mutated by the prayer reward engine and challenge completion.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username       string             `bson:"username" json:"username"`
	FullName       string             `bson:"full_name" json:"full_name"`
	Email          string             `bson:"email" json:"email"`
	PasswordHash   string             `bson:"password_hash" json:"-"`
	Avatar         string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	RefreshToken   string             `bson:"refresh_token,omitempty" json:"-"`
	DailyScore     int                `bson:"daily_score" json:"daily_score"`
	StreakCount    int                `bson:"streak_count" json:"streak_count"`
	XP             int                `bson:"xp" json:"xp"`
	Level          int                `bson:"level" json:"level"`
	Badges         []string           `bson:"badges" json:"badges"`
	LastRewardDate string             `bson:"last_reward_date,omitempty" json:"last_reward_date,omitempty"`
	LastActivity   *time.Time         `bson:"last_activity,omitempty" json:"last_activity,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// DayRecord is one calendar day of a habit's ledger. It has no identity
// outside its parent habit.
type DayRecord struct {
	Date        string     `bson:"date" json:"date"`
	Completed   bool       `bson:"completed" json:"completed"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Habit embeds its full daily ledger. DailyProgress always holds exactly
// DurationDays records, dates strictly consecutive from StartDate.
type Habit struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description" json:"description"`
	Category      string             `bson:"category,omitempty" json:"category,omitempty"`
	Icon          string             `bson:"icon,omitempty" json:"icon,omitempty"`
	StartDate     string             `bson:"start_date" json:"start_date"`
	EndDate       string             `bson:"end_date" json:"end_date"`
	DurationDays  int                `bson:"duration_days" json:"duration_days"`
	DailyProgress []DayRecord        `bson:"daily_progress" json:"daily_progress"`
	CurrentStreak int                `bson:"current_streak" json:"current_streak"`
	LongestStreak int                `bson:"longest_streak" json:"longest_streak"`
	IsCompleted   bool               `bson:"is_completed" json:"is_completed"`
	CompletedAt   *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

// Prayer is one record per user per prayer name per calendar date.
// Date is a YYYY-MM-DD string; uniqueness of (user_id, prayer_name, date)
// is enforced by an index at the storage layer.
type Prayer struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	PrayerName  string             `bson:"prayer_name" json:"prayer_name"`
	IsCompleted bool               `bson:"is_completed" json:"is_completed"`
	Date        string             `bson:"date" json:"date"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

type Challenge struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Goal        string             `bson:"goal" json:"goal"`
	IsGroup     bool               `bson:"is_group" json:"is_group"`
	TotalDays   int                `bson:"total_days" json:"total_days"`
	StartDate   time.Time          `bson:"start_date" json:"start_date"`
	EndDate     time.Time          `bson:"end_date" json:"end_date"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"created_by"`
	Status      string             `bson:"status" json:"status"`
}

type ChallengeParticipant struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	ChallengeID primitive.ObjectID `bson:"challenge_id" json:"challenge_id"`
	Progress    int                `bson:"progress" json:"progress"`
	CurrentDay  int                `bson:"current_day" json:"current_day"`
	Completed   bool               `bson:"completed" json:"completed"`
	JoinedAt    time.Time          `bson:"joined_at" json:"joined_at"`
}

type Group struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

type GroupMember struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID  primitive.ObjectID `bson:"group_id" json:"group_id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}
