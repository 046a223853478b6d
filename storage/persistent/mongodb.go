package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deentrack/deentrack/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStorage is a struct representing a MongoDB storage.
// It provides an interface to perform CRUD operations on various collections in the MongoDB database.
type MongoStorage struct {
	client *mongo.Client
	dbName string
}

// NewMongoStorage creates a new instance of MongoStorage.
// This function doesn't establish a connection to the MongoDB server.
// To connect to the server, use the Connect method of the returned MongoStorage instance.
func NewMongoStorage() *MongoStorage {
	return &MongoStorage{}
}

// Connect establishes a connection to the MongoDB server at the given URI and database name.
// Sets up indexes and unique constraints as necessary.
// Returns an error if any issues are encountered.
func (m *MongoStorage) Connect(dbName, uri string) error {

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %v", err)
	}

	m.client = client
	m.dbName = dbName

	usersCollection := m.client.Database(m.dbName).Collection("users")

	// Every user must have a unique email and username.
	emailIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"email": 1, // 1 for ascending order
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = usersCollection.Indexes().CreateOne(ctx, emailIndexModel)
	if err != nil {
		return fmt.Errorf("error creating email index: %v", err)
	}

	usernameIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"username": 1,
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = usersCollection.Indexes().CreateOne(ctx, usernameIndexModel)
	if err != nil {
		return fmt.Errorf("error creating username index: %v", err)
	}

	habitsCollection := m.client.Database(m.dbName).Collection("habits")

	userIdIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"user_id": 1,
		},
		Options: options.Index(),
	}

	_, err = habitsCollection.Indexes().CreateOne(ctx, userIdIndexModel)
	if err != nil {
		return fmt.Errorf("error creating user_id index on habits: %v", err)
	}

	prayersCollection := m.client.Database(m.dbName).Collection("prayers")

	// One record per (user, prayer name, date). This is what makes the
	// lazy same-day creation idempotent under concurrent requests.
	prayerUniqueIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "prayer_name", Value: 1},
			{Key: "date", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = prayersCollection.Indexes().CreateOne(ctx, prayerUniqueIndexModel)
	if err != nil {
		return fmt.Errorf("error creating user_id, prayer_name and date index on prayers: %v", err)
	}

	prayerDateIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "date", Value: 1},
		},
		Options: options.Index(),
	}

	_, err = prayersCollection.Indexes().CreateOne(ctx, prayerDateIndexModel)
	if err != nil {
		return fmt.Errorf("error creating user_id and date index on prayers: %v", err)
	}

	participantsCollection := m.client.Database(m.dbName).Collection("challengeParticipants")

	// A user joins a challenge at most once.
	participantUniqueIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "challenge_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = participantsCollection.Indexes().CreateOne(ctx, participantUniqueIndexModel)
	if err != nil {
		return fmt.Errorf("error creating user_id and challenge_id index on participants: %v", err)
	}

	groupMembersCollection := m.client.Database(m.dbName).Collection("groupMembers")

	memberUniqueIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "group_id", Value: 1},
			{Key: "user_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	_, err = groupMembersCollection.Indexes().CreateOne(ctx, memberUniqueIndexModel)
	if err != nil {
		return fmt.Errorf("error creating group_id and user_id index on group members: %v", err)
	}

	return nil
}

// Disconnect closes the connection to the MongoDB server.
// It should be called when the MongoStorage instance is no longer needed.
// Returns an error if the disconnection process fails.
func (m *MongoStorage) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.client.Disconnect(ctx)
	if err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %v", err)
	}

	return nil
}

// IsDuplicateKey reports whether an insert failed because a unique index
// rejected the document.
func IsDuplicateKey(err error) bool {
	var writeException mongo.WriteException
	if errors.As(err, &writeException) {
		for _, writeError := range writeException.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	var bulkException mongo.BulkWriteException
	if errors.As(err, &bulkException) {
		for _, writeError := range bulkException.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	return false
}

// UserCount returns the number of documents in the 'users' collection that match the given filter.
func (m *MongoStorage) UserCount(ctx context.Context, filter interface{}) (int64, error) {
	collection := m.client.Database(m.dbName).Collection("users")
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AddUser adds a new user document to the 'users' collection.
func (m *MongoStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	collection := m.client.Database(m.dbName).Collection("users")
	result, err := collection.InsertOne(ctx, user)
	if err != nil {
		return nil, err
	}

	user.ID = result.InsertedID.(primitive.ObjectID)
	return user, nil
}

// FindUser finds a user document in the 'users' collection that matches the given filter.
func (m *MongoStorage) FindUser(ctx context.Context, filter interface{}) (*models.User, error) {
	collection := m.client.Database(m.dbName).Collection("users")
	result := collection.FindOne(ctx, filter)
	user := &models.User{}
	err := result.Decode(user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser updates a user document in the 'users' collection that matches the given filter with the provided update.
// Returns the updated user as a User instance and an error if the update operation fails.
func (m *MongoStorage) UpdateUser(ctx context.Context, filter interface{}, update interface{}) (*models.User, error) {
	collection := m.client.Database(m.dbName).Collection("users")
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return m.FindUser(ctx, filter)
}

// DeleteUser deletes a user document from the 'users' collection that matches the given filter.
// It also deletes all habits and prayer records owned by the user and removes their
// challenge participations and group memberships.
func (m *MongoStorage) DeleteUser(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	collection := m.client.Database(m.dbName).Collection("users")
	userResult := collection.FindOne(ctx, filter)
	if err := userResult.Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New("user not found")
		}
		return nil, err
	}

	user := &models.User{}
	if err := userResult.Decode(user); err != nil {
		return nil, err
	}

	ownedFilter := bson.M{"user_id": user.ID}
	for _, name := range []string{"habits", "prayers", "challengeParticipants", "groupMembers"} {
		_, err := m.client.Database(m.dbName).Collection(name).DeleteMany(ctx, ownedFilter)
		if err != nil {
			return nil, err
		}
	}

	result, err := collection.DeleteOne(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// AddHabit adds a new habit document, with its embedded ledger, to the 'habits' collection.
func (m *MongoStorage) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	collection := m.client.Database(m.dbName).Collection("habits")
	result, err := collection.InsertOne(ctx, habit)
	if err != nil {
		return nil, err
	}

	habit.ID = result.InsertedID.(primitive.ObjectID)
	return habit, nil
}

// FindHabit finds a single habit document that matches the given filter.
func (m *MongoStorage) FindHabit(ctx context.Context, filter interface{}) (*models.Habit, error) {
	collection := m.client.Database(m.dbName).Collection("habits")
	result := collection.FindOne(ctx, filter)
	habit := &models.Habit{}
	err := result.Decode(habit)
	if err != nil {
		return nil, err
	}
	return habit, nil
}

// FindHabitsByParameter finds habit documents in the 'habits' collection that match the given filter.
func (m *MongoStorage) FindHabitsByParameter(ctx context.Context, filter interface{}) ([]models.Habit, error) {
	collection := m.client.Database(m.dbName).Collection("habits")
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var habits []models.Habit
	for cursor.Next(ctx) {
		var habit models.Habit
		err := cursor.Decode(&habit)
		if err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}

	return habits, cursor.Err()
}

// UpdateHabit updates a habit document that matches the given filter with the provided update.
func (m *MongoStorage) UpdateHabit(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error) {
	collection := m.client.Database(m.dbName).Collection("habits")
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return &UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount}, nil
}

// DeleteHabit deletes habit documents from the 'habits' collection that match the given filter.
func (m *MongoStorage) DeleteHabit(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	collection := m.client.Database(m.dbName).Collection("habits")
	result, err := collection.DeleteMany(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// AddPrayers inserts a batch of prayer records into the 'prayers' collection.
// The unique (user_id, prayer_name, date) index rejects duplicates; callers
// should treat a duplicate-key failure as "records already exist" and re-read.
func (m *MongoStorage) AddPrayers(ctx context.Context, prayers []models.Prayer) ([]models.Prayer, error) {
	collection := m.client.Database(m.dbName).Collection("prayers")
	docs := make([]interface{}, len(prayers))
	for i := range prayers {
		docs[i] = prayers[i]
	}
	result, err := collection.InsertMany(ctx, docs)
	if err != nil {
		return nil, err
	}
	for i, id := range result.InsertedIDs {
		prayers[i].ID = id.(primitive.ObjectID)
	}
	return prayers, nil
}

// FindPrayer finds a single prayer document that matches the given filter.
func (m *MongoStorage) FindPrayer(ctx context.Context, filter interface{}) (*models.Prayer, error) {
	collection := m.client.Database(m.dbName).Collection("prayers")
	result := collection.FindOne(ctx, filter)
	prayer := &models.Prayer{}
	err := result.Decode(prayer)
	if err != nil {
		return nil, err
	}
	return prayer, nil
}

// FindPrayersByParameter finds prayer documents that match the given filter.
func (m *MongoStorage) FindPrayersByParameter(ctx context.Context, filter interface{}) ([]models.Prayer, error) {
	collection := m.client.Database(m.dbName).Collection("prayers")
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var prayers []models.Prayer
	for cursor.Next(ctx) {
		var prayer models.Prayer
		err := cursor.Decode(&prayer)
		if err != nil {
			return nil, err
		}
		prayers = append(prayers, prayer)
	}

	return prayers, cursor.Err()
}

// UpdatePrayer updates a prayer document that matches the given filter with the provided update.
func (m *MongoStorage) UpdatePrayer(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error) {
	collection := m.client.Database(m.dbName).Collection("prayers")
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return &UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount}, nil
}

// AddChallenge adds a new challenge document to the 'challenges' collection.
func (m *MongoStorage) AddChallenge(ctx context.Context, challenge *models.Challenge) (*models.Challenge, error) {
	collection := m.client.Database(m.dbName).Collection("challenges")
	result, err := collection.InsertOne(ctx, challenge)
	if err != nil {
		return nil, err
	}

	challenge.ID = result.InsertedID.(primitive.ObjectID)
	return challenge, nil
}

// FindChallenge finds a single challenge document that matches the given filter.
func (m *MongoStorage) FindChallenge(ctx context.Context, filter interface{}) (*models.Challenge, error) {
	collection := m.client.Database(m.dbName).Collection("challenges")
	result := collection.FindOne(ctx, filter)
	challenge := &models.Challenge{}
	err := result.Decode(challenge)
	if err != nil {
		return nil, err
	}
	return challenge, nil
}

// FindChallengesByParameter finds challenge documents that match the given filter.
func (m *MongoStorage) FindChallengesByParameter(ctx context.Context, filter interface{}) ([]models.Challenge, error) {
	collection := m.client.Database(m.dbName).Collection("challenges")
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var challenges []models.Challenge
	for cursor.Next(ctx) {
		var challenge models.Challenge
		err := cursor.Decode(&challenge)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, challenge)
	}

	return challenges, cursor.Err()
}

// UpdateChallenge updates a challenge document that matches the given filter with the provided update.
func (m *MongoStorage) UpdateChallenge(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error) {
	collection := m.client.Database(m.dbName).Collection("challenges")
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return &UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount}, nil
}

// AddParticipant adds a challenge participant document to the 'challengeParticipants' collection.
func (m *MongoStorage) AddParticipant(ctx context.Context, participant *models.ChallengeParticipant) (*models.ChallengeParticipant, error) {
	collection := m.client.Database(m.dbName).Collection("challengeParticipants")
	result, err := collection.InsertOne(ctx, participant)
	if err != nil {
		return nil, err
	}

	participant.ID = result.InsertedID.(primitive.ObjectID)
	return participant, nil
}

// FindParticipant finds a single participant document that matches the given filter.
func (m *MongoStorage) FindParticipant(ctx context.Context, filter interface{}) (*models.ChallengeParticipant, error) {
	collection := m.client.Database(m.dbName).Collection("challengeParticipants")
	result := collection.FindOne(ctx, filter)
	participant := &models.ChallengeParticipant{}
	err := result.Decode(participant)
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// FindParticipantsByParameter finds participant documents that match the given filter.
func (m *MongoStorage) FindParticipantsByParameter(ctx context.Context, filter interface{}) ([]models.ChallengeParticipant, error) {
	collection := m.client.Database(m.dbName).Collection("challengeParticipants")
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var participants []models.ChallengeParticipant
	for cursor.Next(ctx) {
		var participant models.ChallengeParticipant
		err := cursor.Decode(&participant)
		if err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}

	return participants, cursor.Err()
}

// UpdateParticipant updates a participant document that matches the given filter with the provided update.
func (m *MongoStorage) UpdateParticipant(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error) {
	collection := m.client.Database(m.dbName).Collection("challengeParticipants")
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return &UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount}, nil
}

// AddGroup adds a new group document to the 'groups' collection.
func (m *MongoStorage) AddGroup(ctx context.Context, group *models.Group) (*models.Group, error) {
	collection := m.client.Database(m.dbName).Collection("groups")
	result, err := collection.InsertOne(ctx, group)
	if err != nil {
		return nil, err
	}

	group.ID = result.InsertedID.(primitive.ObjectID)
	return group, nil
}

// FindGroup finds a single group document that matches the given filter.
func (m *MongoStorage) FindGroup(ctx context.Context, filter interface{}) (*models.Group, error) {
	collection := m.client.Database(m.dbName).Collection("groups")
	result := collection.FindOne(ctx, filter)
	group := &models.Group{}
	err := result.Decode(group)
	if err != nil {
		return nil, err
	}
	return group, nil
}

// AddGroupMember adds a group membership document to the 'groupMembers' collection.
func (m *MongoStorage) AddGroupMember(ctx context.Context, member *models.GroupMember) (*models.GroupMember, error) {
	collection := m.client.Database(m.dbName).Collection("groupMembers")
	result, err := collection.InsertOne(ctx, member)
	if err != nil {
		return nil, err
	}

	member.ID = result.InsertedID.(primitive.ObjectID)
	return member, nil
}

// FindGroupMember finds a single membership document that matches the given filter.
func (m *MongoStorage) FindGroupMember(ctx context.Context, filter interface{}) (*models.GroupMember, error) {
	collection := m.client.Database(m.dbName).Collection("groupMembers")
	result := collection.FindOne(ctx, filter)
	member := &models.GroupMember{}
	err := result.Decode(member)
	if err != nil {
		return nil, err
	}
	return member, nil
}
