// Package memory provides an in-process implementation of the persistent
// storage interface. It keeps documents as bson maps and understands the
// filter and $set/$unset update shapes the services use, which lets the
// service packages run their tests without a live MongoDB.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/deentrack/deentrack/models"
	storage "github.com/deentrack/deentrack/storage/persistent"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MemoryStorage implements storage.StorageInterface over in-process maps.
type MemoryStorage struct {
	mu          sync.Mutex
	collections map[string]*collection
}

// NewMemoryStorage returns an empty, connected store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{collections: map[string]*collection{}}
}

func (m *MemoryStorage) Disconnect() error { return nil }

func (m *MemoryStorage) coll(name string) *collection {
	c, ok := m.collections[name]
	if !ok {
		c = &collection{docs: map[primitive.ObjectID]bson.M{}}
		m.collections[name] = c
	}
	return c
}

// collection holds bson documents keyed by object ID, in insertion order.
type collection struct {
	docs  map[primitive.ObjectID]bson.M
	order []primitive.ObjectID
}

func toDoc(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := bson.M{}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDoc(doc bson.M, out interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

func valuesEqual(got, want interface{}) bool {
	if reflect.DeepEqual(got, want) {
		return true
	}
	gf, gok := toFloat(got)
	wf, wok := toFloat(want)
	return gok && wok && gf == wf
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func matches(doc bson.M, filter bson.M) bool {
	for key, want := range filter {
		got, ok := doc[key]
		if !ok {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func asFilter(filter interface{}) (bson.M, error) {
	f, ok := filter.(bson.M)
	if !ok {
		return nil, fmt.Errorf("unsupported filter type %T", filter)
	}
	return f, nil
}

func duplicateKeyError() error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
}

func (c *collection) insert(v interface{}) (primitive.ObjectID, error) {
	doc, err := toDoc(v)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, ok := doc["_id"].(primitive.ObjectID)
	if !ok || id.IsZero() {
		id = primitive.NewObjectID()
		doc["_id"] = id
	}
	c.docs[id] = doc
	c.order = append(c.order, id)
	return id, nil
}

func (c *collection) find(filter bson.M) []bson.M {
	var found []bson.M
	for _, id := range c.order {
		doc, ok := c.docs[id]
		if ok && matches(doc, filter) {
			found = append(found, doc)
		}
	}
	return found
}

func (c *collection) update(filter bson.M, update interface{}) (int64, error) {
	found := c.find(filter)
	if len(found) == 0 {
		return 0, mongo.ErrNoDocuments
	}
	normalized, err := toDoc(update)
	if err != nil {
		return 0, err
	}
	doc := found[0]
	if set, ok := normalized["$set"].(bson.M); ok {
		for key, value := range set {
			doc[key] = value
		}
	}
	if unset, ok := normalized["$unset"].(bson.M); ok {
		for key := range unset {
			delete(doc, key)
		}
	}
	return 1, nil
}

func (c *collection) delete(filter bson.M) int64 {
	var deleted int64
	kept := c.order[:0]
	for _, id := range c.order {
		doc := c.docs[id]
		if matches(doc, filter) {
			delete(c.docs, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return deleted
}

func (m *MemoryStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := m.coll("users")
	if len(users.find(bson.M{"email": user.Email})) > 0 || len(users.find(bson.M{"username": user.Username})) > 0 {
		return nil, duplicateKeyError()
	}
	id, err := users.insert(user)
	if err != nil {
		return nil, err
	}
	user.ID = id
	return user, nil
}

func (m *MemoryStorage) FindUser(ctx context.Context, filter interface{}) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	found := m.coll("users").find(f)
	if len(found) == 0 {
		return nil, mongo.ErrNoDocuments
	}
	user := &models.User{}
	if err := fromDoc(found[0], user); err != nil {
		return nil, err
	}
	return user, nil
}

func (m *MemoryStorage) UpdateUser(ctx context.Context, filter interface{}, update interface{}) (*models.User, error) {
	m.mu.Lock()
	f, err := asFilter(filter)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if _, err := m.coll("users").update(f, update); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()
	return m.FindUser(ctx, filter)
}

func (m *MemoryStorage) DeleteUser(ctx context.Context, filter interface{}) (*storage.DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	deleted := m.coll("users").delete(f)
	return &storage.DeleteResult{DeletedCount: deleted}, nil
}

func (m *MemoryStorage) UserCount(ctx context.Context, filter interface{}) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(m.coll("users").find(f))), nil
}

func (m *MemoryStorage) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.coll("habits").insert(habit)
	if err != nil {
		return nil, err
	}
	habit.ID = id
	return habit, nil
}

func (m *MemoryStorage) FindHabit(ctx context.Context, filter interface{}) (*models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	found := m.coll("habits").find(f)
	if len(found) == 0 {
		return nil, mongo.ErrNoDocuments
	}
	habit := &models.Habit{}
	if err := fromDoc(found[0], habit); err != nil {
		return nil, err
	}
	return habit, nil
}

func (m *MemoryStorage) FindHabitsByParameter(ctx context.Context, filter interface{}) ([]models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	var habits []models.Habit
	for _, doc := range m.coll("habits").find(f) {
		var habit models.Habit
		if err := fromDoc(doc, &habit); err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}
	return habits, nil
}

func (m *MemoryStorage) UpdateHabit(ctx context.Context, filter interface{}, update interface{}) (*storage.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	modified, err := m.coll("habits").update(f, update)
	if err != nil {
		return nil, err
	}
	return &storage.UpdateResult{MatchedCount: modified, ModifiedCount: modified}, nil
}

func (m *MemoryStorage) DeleteHabit(ctx context.Context, filter interface{}) (*storage.DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	deleted := m.coll("habits").delete(f)
	return &storage.DeleteResult{DeletedCount: deleted}, nil
}

func (m *MemoryStorage) AddPrayers(ctx context.Context, prayers []models.Prayer) ([]models.Prayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.coll("prayers")
	for _, prayer := range prayers {
		dup := coll.find(bson.M{
			"user_id":     prayer.UserID,
			"prayer_name": prayer.PrayerName,
			"date":        prayer.Date,
		})
		if len(dup) > 0 {
			return nil, duplicateKeyError()
		}
	}
	for i := range prayers {
		id, err := coll.insert(&prayers[i])
		if err != nil {
			return nil, err
		}
		prayers[i].ID = id
	}
	return prayers, nil
}

func (m *MemoryStorage) FindPrayer(ctx context.Context, filter interface{}) (*models.Prayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	found := m.coll("prayers").find(f)
	if len(found) == 0 {
		return nil, mongo.ErrNoDocuments
	}
	prayer := &models.Prayer{}
	if err := fromDoc(found[0], prayer); err != nil {
		return nil, err
	}
	return prayer, nil
}

func (m *MemoryStorage) FindPrayersByParameter(ctx context.Context, filter interface{}) ([]models.Prayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	var prayers []models.Prayer
	for _, doc := range m.coll("prayers").find(f) {
		var prayer models.Prayer
		if err := fromDoc(doc, &prayer); err != nil {
			return nil, err
		}
		prayers = append(prayers, prayer)
	}
	return prayers, nil
}

func (m *MemoryStorage) UpdatePrayer(ctx context.Context, filter interface{}, update interface{}) (*storage.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	modified, err := m.coll("prayers").update(f, update)
	if err != nil {
		return nil, err
	}
	return &storage.UpdateResult{MatchedCount: modified, ModifiedCount: modified}, nil
}

func (m *MemoryStorage) AddChallenge(ctx context.Context, challenge *models.Challenge) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.coll("challenges").insert(challenge)
	if err != nil {
		return nil, err
	}
	challenge.ID = id
	return challenge, nil
}

func (m *MemoryStorage) FindChallenge(ctx context.Context, filter interface{}) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	found := m.coll("challenges").find(f)
	if len(found) == 0 {
		return nil, mongo.ErrNoDocuments
	}
	challenge := &models.Challenge{}
	if err := fromDoc(found[0], challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

func (m *MemoryStorage) FindChallengesByParameter(ctx context.Context, filter interface{}) ([]models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	var challenges []models.Challenge
	for _, doc := range m.coll("challenges").find(f) {
		var challenge models.Challenge
		if err := fromDoc(doc, &challenge); err != nil {
			return nil, err
		}
		challenges = append(challenges, challenge)
	}
	return challenges, nil
}

func (m *MemoryStorage) UpdateChallenge(ctx context.Context, filter interface{}, update interface{}) (*storage.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	modified, err := m.coll("challenges").update(f, update)
	if err != nil {
		return nil, err
	}
	return &storage.UpdateResult{MatchedCount: modified, ModifiedCount: modified}, nil
}

func (m *MemoryStorage) AddParticipant(ctx context.Context, participant *models.ChallengeParticipant) (*models.ChallengeParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.coll("challengeParticipants")
	dup := coll.find(bson.M{"user_id": participant.UserID, "challenge_id": participant.ChallengeID})
	if len(dup) > 0 {
		return nil, duplicateKeyError()
	}
	id, err := coll.insert(participant)
	if err != nil {
		return nil, err
	}
	participant.ID = id
	return participant, nil
}

func (m *MemoryStorage) FindParticipant(ctx context.Context, filter interface{}) (*models.ChallengeParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	found := m.coll("challengeParticipants").find(f)
	if len(found) == 0 {
		return nil, mongo.ErrNoDocuments
	}
	participant := &models.ChallengeParticipant{}
	if err := fromDoc(found[0], participant); err != nil {
		return nil, err
	}
	return participant, nil
}

func (m *MemoryStorage) FindParticipantsByParameter(ctx context.Context, filter interface{}) ([]models.ChallengeParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	var participants []models.ChallengeParticipant
	for _, doc := range m.coll("challengeParticipants").find(f) {
		var participant models.ChallengeParticipant
		if err := fromDoc(doc, &participant); err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}
	return participants, nil
}

func (m *MemoryStorage) UpdateParticipant(ctx context.Context, filter interface{}, update interface{}) (*storage.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	modified, err := m.coll("challengeParticipants").update(f, update)
	if err != nil {
		return nil, err
	}
	return &storage.UpdateResult{MatchedCount: modified, ModifiedCount: modified}, nil
}

func (m *MemoryStorage) AddGroup(ctx context.Context, group *models.Group) (*models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.coll("groups").insert(group)
	if err != nil {
		return nil, err
	}
	group.ID = id
	return group, nil
}

func (m *MemoryStorage) FindGroup(ctx context.Context, filter interface{}) (*models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	found := m.coll("groups").find(f)
	if len(found) == 0 {
		return nil, mongo.ErrNoDocuments
	}
	group := &models.Group{}
	if err := fromDoc(found[0], group); err != nil {
		return nil, err
	}
	return group, nil
}

func (m *MemoryStorage) AddGroupMember(ctx context.Context, member *models.GroupMember) (*models.GroupMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.coll("groupMembers")
	dup := coll.find(bson.M{"group_id": member.GroupID, "user_id": member.UserID})
	if len(dup) > 0 {
		return nil, duplicateKeyError()
	}
	id, err := coll.insert(member)
	if err != nil {
		return nil, err
	}
	member.ID = id
	return member, nil
}

func (m *MemoryStorage) FindGroupMember(ctx context.Context, filter interface{}) (*models.GroupMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := asFilter(filter)
	if err != nil {
		return nil, err
	}
	found := m.coll("groupMembers").find(f)
	if len(found) == 0 {
		return nil, mongo.ErrNoDocuments
	}
	member := &models.GroupMember{}
	if err := fromDoc(found[0], member); err != nil {
		return nil, err
	}
	return member, nil
}

var _ storage.StorageInterface = (*MemoryStorage)(nil)
