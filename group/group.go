// Package group implements accountability groups. Groups exist to host
// group challenges; membership is append-only.
package group

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

var store storage.StorageInterface

// Init wires the group service to a storage backend.
func Init(s storage.StorageInterface) {
	store = s
}

// CreateInput carries the user-supplied fields for a new group.
type CreateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create validates the input, persists the group, and enrolls the creator
// as its first member.
func Create(ctx context.Context, userID primitive.ObjectID, in CreateInput, now time.Time) (*models.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierr.Validation("group name is required")
	}
	if len(name) > 100 {
		return nil, apierr.Validation("group name must be 1-100 characters")
	}
	if len(in.Description) > 1000 {
		return nil, apierr.Validation("group description must be at most 1000 characters")
	}

	group := &models.Group{
		Name:        name,
		Description: in.Description,
		CreatedBy:   userID,
		CreatedAt:   now,
	}

	created, err := store.AddGroup(ctx, group)
	if err != nil {
		return nil, err
	}

	member := &models.GroupMember{
		GroupID:  created.ID,
		UserID:   userID,
		JoinedAt: now,
	}
	if _, err := store.AddGroupMember(ctx, member); err != nil && !storage.IsDuplicateKey(err) {
		return nil, err
	}

	return created, nil
}

// Join adds the user to an existing group. Joining twice is rejected.
func Join(ctx context.Context, userID, groupID primitive.ObjectID, now time.Time) (*models.GroupMember, error) {
	if _, err := store.FindGroup(ctx, bson.M{"_id": groupID}); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apierr.NotFound("group not found")
		}
		return nil, err
	}

	if _, err := store.FindGroupMember(ctx, bson.M{"group_id": groupID, "user_id": userID}); err == nil {
		return nil, apierr.Validation("user is already a member of this group")
	} else if err != mongo.ErrNoDocuments {
		return nil, err
	}

	member := &models.GroupMember{
		GroupID:  groupID,
		UserID:   userID,
		JoinedAt: now,
	}

	created, err := store.AddGroupMember(ctx, member)
	if err != nil {
		if storage.IsDuplicateKey(err) {
			return nil, apierr.Validation("user is already a member of this group")
		}
		return nil, err
	}
	return created, nil
}
