package storage

import (
	"context"
	"fmt"

	"github.com/deentrack/deentrack/models"
)

// DeleteResult represents the result of a deletion operation,
// specifically the count of documents deleted.
type DeleteResult struct {
	DeletedCount int64
}

// UpdateResult represents the result of an update operation,
// specifically the count of documents matched and modified.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// StorageInterface defines the set of methods that any persistent storage
// backend needs to implement.
type StorageInterface interface {
	// Disconnects from the storage backend.
	Disconnect() error

	// Adds a new user to the storage backend.
	AddUser(ctx context.Context, user *models.User) (*models.User, error)
	// Finds a user in the storage backend using a filter.
	FindUser(ctx context.Context, filter interface{}) (*models.User, error)
	// Updates an existing user in the storage backend using a filter and update instructions.
	UpdateUser(ctx context.Context, filter interface{}, update interface{}) (*models.User, error)
	// Deletes a user in the storage backend using a filter.
	DeleteUser(ctx context.Context, filter interface{}) (*DeleteResult, error)
	// Returns the count of users in the storage backend using a filter.
	UserCount(ctx context.Context, filter interface{}) (int64, error)

	// Adds a new habit, with its embedded daily ledger, to the storage backend.
	AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error)
	// Finds a single habit in the storage backend using a filter.
	FindHabit(ctx context.Context, filter interface{}) (*models.Habit, error)
	// Finds habits in the storage backend using a filter.
	FindHabitsByParameter(ctx context.Context, filter interface{}) ([]models.Habit, error)
	// Updates an existing habit in the storage backend using a filter and update instructions.
	UpdateHabit(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error)
	// Deletes habits in the storage backend using a filter.
	DeleteHabit(ctx context.Context, filter interface{}) (*DeleteResult, error)

	// Adds a batch of prayer records to the storage backend.
	AddPrayers(ctx context.Context, prayers []models.Prayer) ([]models.Prayer, error)
	// Finds a single prayer record in the storage backend using a filter.
	FindPrayer(ctx context.Context, filter interface{}) (*models.Prayer, error)
	// Finds prayer records in the storage backend using a filter.
	FindPrayersByParameter(ctx context.Context, filter interface{}) ([]models.Prayer, error)
	// Updates an existing prayer record using a filter and update instructions.
	UpdatePrayer(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error)

	// Adds a new challenge to the storage backend.
	AddChallenge(ctx context.Context, challenge *models.Challenge) (*models.Challenge, error)
	// Finds a single challenge using a filter.
	FindChallenge(ctx context.Context, filter interface{}) (*models.Challenge, error)
	// Finds challenges using a filter.
	FindChallengesByParameter(ctx context.Context, filter interface{}) ([]models.Challenge, error)
	// Updates an existing challenge using a filter and update instructions.
	UpdateChallenge(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error)

	// Adds a challenge participant record.
	AddParticipant(ctx context.Context, participant *models.ChallengeParticipant) (*models.ChallengeParticipant, error)
	// Finds a single participant record using a filter.
	FindParticipant(ctx context.Context, filter interface{}) (*models.ChallengeParticipant, error)
	// Finds participant records using a filter.
	FindParticipantsByParameter(ctx context.Context, filter interface{}) ([]models.ChallengeParticipant, error)
	// Updates a participant record using a filter and update instructions.
	UpdateParticipant(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error)

	// Adds a new group.
	AddGroup(ctx context.Context, group *models.Group) (*models.Group, error)
	// Finds a single group using a filter.
	FindGroup(ctx context.Context, filter interface{}) (*models.Group, error)
	// Adds a group membership record.
	AddGroupMember(ctx context.Context, member *models.GroupMember) (*models.GroupMember, error)
	// Finds a single membership record using a filter.
	FindGroupMember(ctx context.Context, filter interface{}) (*models.GroupMember, error)
}

// NewStorage creates a new StorageInterface with a MongoDB backend,
// using the provided URI to connect to the MongoDB server.
func NewStorage(dbName, uri string) (StorageInterface, error) {
	storage := NewMongoStorage()
	err := storage.Connect(dbName, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return storage, nil
}
