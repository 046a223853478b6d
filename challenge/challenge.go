// Package challenge implements group challenges: creation, joining, and
// day-by-day progress tracking with a completion reward on the user
// aggregate.
package challenge

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/deentrack/deentrack/lib/apierr"
	"github.com/deentrack/deentrack/models"
	"github.com/deentrack/deentrack/queue"
	storage "github.com/deentrack/deentrack/storage/persistent"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// StatusActive is the only state in which a challenge accepts joins and
// progress updates.
const StatusActive = "active"

// completionXP is granted once when a participant finishes a challenge.
const completionXP = 100

var store storage.StorageInterface

var notifications *queue.Queue

// Init wires the challenge service to a storage backend and an optional
// notification queue.
func Init(s storage.StorageInterface, q *queue.Queue) {
	store = s
	notifications = q
}

// CreateInput carries the user-supplied fields for a new challenge.
type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Goal        string `json:"goal"`
	TotalDays   int    `json:"total_days"`
	IsGroup     bool   `json:"is_group"`
}

// Enrollment pairs a participant record with its challenge for listing.
type Enrollment struct {
	Participant models.ChallengeParticipant `json:"participant"`
	Challenge   *models.Challenge           `json:"challenge,omitempty"`
}

// Details bundles a challenge with everyone enrolled in it.
type Details struct {
	Challenge    *models.Challenge             `json:"challenge"`
	Participants []models.ChallengeParticipant `json:"participants"`
}

// Create validates the input and persists a new active challenge whose
// window starts now and spans TotalDays.
func Create(ctx context.Context, userID primitive.ObjectID, in CreateInput, now time.Time) (*models.Challenge, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.Description == "" || in.Goal == "" || in.TotalDays == 0 {
		return nil, apierr.Validation("title, description, goal, and total days are required")
	}
	if len(title) > 100 {
		return nil, apierr.Validation("title must be 1-100 characters")
	}
	if len(in.Description) > 500 {
		return nil, apierr.Validation("description must be 1-500 characters")
	}
	if in.TotalDays < 1 {
		return nil, apierr.Validation("total days must be a positive integer")
	}

	challenge := &models.Challenge{
		Title:       title,
		Description: in.Description,
		Goal:        in.Goal,
		IsGroup:     in.IsGroup,
		TotalDays:   in.TotalDays,
		StartDate:   now,
		EndDate:     now.AddDate(0, 0, in.TotalDays),
		CreatedBy:   userID,
		Status:      StatusActive,
	}

	return store.AddChallenge(ctx, challenge)
}

// Join enrolls the user in an active challenge. A user joins a challenge
// at most once.
func Join(ctx context.Context, userID, challengeID primitive.ObjectID, now time.Time) (*models.ChallengeParticipant, error) {
	challenge, err := store.FindChallenge(ctx, bson.M{"_id": challengeID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apierr.NotFound("challenge not found")
		}
		return nil, err
	}
	if challenge.Status != StatusActive {
		return nil, apierr.Validation("challenge is not active")
	}

	if _, err := store.FindParticipant(ctx, bson.M{"user_id": userID, "challenge_id": challengeID}); err == nil {
		return nil, apierr.Validation("user already joined this challenge")
	} else if err != mongo.ErrNoDocuments {
		return nil, err
	}

	participant := &models.ChallengeParticipant{
		UserID:      userID,
		ChallengeID: challengeID,
		Progress:    0,
		CurrentDay:  1,
		Completed:   false,
		JoinedAt:    now,
	}

	created, err := store.AddParticipant(ctx, participant)
	if err != nil {
		if storage.IsDuplicateKey(err) {
			return nil, apierr.Validation("user already joined this challenge")
		}
		return nil, err
	}
	return created, nil
}

// UpdateProgress advances the participant by one day. When progress
// reaches the challenge's total days, the participant is finalized and
// the user receives the completion XP and a named badge. Progress on an
// already-finished enrollment is a silent no-op.
func UpdateProgress(ctx context.Context, userID, challengeID primitive.ObjectID, now time.Time) (*models.ChallengeParticipant, error) {
	participantFilter := bson.M{"user_id": userID, "challenge_id": challengeID}
	participant, err := store.FindParticipant(ctx, participantFilter)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apierr.NotFound("you are not part of this challenge")
		}
		return nil, err
	}
	if participant.Completed {
		return participant, nil
	}

	challenge, err := store.FindChallenge(ctx, bson.M{"_id": challengeID, "status": StatusActive})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apierr.NotFound("challenge not found or not active")
		}
		return nil, err
	}

	participant.Progress++
	participant.CurrentDay++

	if participant.Progress >= challenge.TotalDays {
		participant.Completed = true
		if err := rewardCompletion(ctx, userID, challenge, now); err != nil {
			return nil, err
		}
	}

	update := bson.M{"$set": bson.M{
		"progress":    participant.Progress,
		"current_day": participant.CurrentDay,
		"completed":   participant.Completed,
	}}
	if _, err := store.UpdateParticipant(ctx, participantFilter, update); err != nil {
		return nil, err
	}

	return participant, nil
}

// rewardCompletion grants the completion XP and badge on the user
// aggregate and publishes a badge notification.
func rewardCompletion(ctx context.Context, userID primitive.ObjectID, challenge *models.Challenge, now time.Time) error {
	user, err := store.FindUser(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}

	badge := challenge.Title + " Completed"
	user.XP += completionXP
	user.Badges = append(user.Badges, badge)
	lastActivity := now

	update := bson.M{"$set": bson.M{
		"xp":            user.XP,
		"badges":        user.Badges,
		"last_activity": &lastActivity,
	}}
	if _, err := store.UpdateUser(ctx, bson.M{"_id": userID}, update); err != nil {
		return err
	}

	if notifications != nil {
		msg := &queue.Message{
			Id:    userID.Hex() + "_" + challenge.ID.Hex() + "_completed",
			To:    user.Email,
			Badge: badge,
		}
		if err := queue.ProcessNotification(msg, notifications); err != nil {
			log.Printf("failed to publish challenge completion notification: %v", err)
		}
	}
	return nil
}

// MyChallenges lists the user's enrollments with their challenge documents
// attached.
func MyChallenges(ctx context.Context, userID primitive.ObjectID) ([]Enrollment, error) {
	participants, err := store.FindParticipantsByParameter(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}

	enrollments := make([]Enrollment, 0, len(participants))
	for _, participant := range participants {
		challenge, err := store.FindChallenge(ctx, bson.M{"_id": participant.ChallengeID})
		if err != nil && err != mongo.ErrNoDocuments {
			return nil, err
		}
		enrollments = append(enrollments, Enrollment{Participant: participant, Challenge: challenge})
	}
	return enrollments, nil
}

// GetDetails returns a challenge together with all of its participants.
func GetDetails(ctx context.Context, challengeID primitive.ObjectID) (*Details, error) {
	challenge, err := store.FindChallenge(ctx, bson.M{"_id": challengeID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apierr.NotFound("challenge not found")
		}
		return nil, err
	}

	participants, err := store.FindParticipantsByParameter(ctx, bson.M{"challenge_id": challengeID})
	if err != nil {
		return nil, err
	}

	return &Details{Challenge: challenge, Participants: participants}, nil
}
