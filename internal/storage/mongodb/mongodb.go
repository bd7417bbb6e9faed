// Package mongodb provides a MongoDB-backed implementation of the storage.Store
// interface over the events, friends, friendGroups, budgets, notifications,
// chats, chatMessages, eventTemplates and preferences collections.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/storage"
)

// Ensure MongoStore implements storage.Store
var _ storage.Store = (*MongoStore)(nil)

// MongoStore implements storage.Store using MongoDB.
type MongoStore struct {
	client        *mongo.Client
	events        *mongo.Collection
	friends       *mongo.Collection
	groups        *mongo.Collection
	budgets       *mongo.Collection
	notifications *mongo.Collection
	chats         *mongo.Collection
	messages      *mongo.Collection
	templates     *mongo.Collection
	preferences   *mongo.Collection
}

// New connects to uri, verifies the connection and ensures indexes exist.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:        client,
		events:        db.Collection("events"),
		friends:       db.Collection("friends"),
		groups:        db.Collection("friendGroups"),
		budgets:       db.Collection("budgets"),
		notifications: db.Collection("notifications"),
		chats:         db.Collection("chats"),
		messages:      db.Collection("chatMessages"),
		templates:     db.Collection("eventTemplates"),
		preferences:   db.Collection("preferences"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.events, mongo.IndexModel{Keys: bson.D{{Key: "creatorId", Value: 1}, {Key: "startDate", Value: 1}}}},
		{s.events, mongo.IndexModel{Keys: bson.D{{Key: "invites.userId", Value: 1}}}},
		{s.events, mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}}}},
		{s.friends, mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "friendId", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.groups, mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}}}},
		{s.budgets, mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "month", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.notifications, mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}}},
		{s.chats, mongo.IndexModel{
			Keys:    bson.D{{Key: "eventId", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.messages, mongo.IndexModel{Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "timestamp", Value: 1}}}},
		{s.templates, mongo.IndexModel{Keys: bson.D{{Key: "creatorId", Value: 1}}}},
		{s.templates, mongo.IndexModel{Keys: bson.D{{Key: "isPublic", Value: 1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func storeErr(op string, err error) error {
	return errdef.NewTransientStore("failed to %s: %w", op, err)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// CreateEvent persists a new event.
func (s *MongoStore) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	t := now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = t
	}
	event.UpdatedAt = t
	for i := range event.Locations {
		if event.Locations[i].ID == "" {
			event.Locations[i].ID = uuid.New().String()
		}
	}
	if _, err := s.events.InsertOne(ctx, toEventDoc(event)); err != nil {
		return storeErr("insert event", err)
	}
	return nil
}

func (s *MongoStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var d eventDoc
	err := s.events.FindOne(ctx, bson.M{"_id": eventID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errdef.NewNotFound("event not found: %s", eventID)
	}
	if err != nil {
		return nil, storeErr("get event", err)
	}
	return d.model(), nil
}

func (s *MongoStore) UpdateEvent(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = now()
	for i := range event.Locations {
		if event.Locations[i].ID == "" {
			event.Locations[i].ID = uuid.New().String()
		}
	}
	res, err := s.events.ReplaceOne(ctx, bson.M{"_id": event.ID}, toEventDoc(event))
	if err != nil {
		return storeErr("update event", err)
	}
	if res.MatchedCount == 0 {
		return errdef.NewNotFound("event not found: %s", event.ID)
	}
	return nil
}

// DeleteEvent removes the event together with its chat.
func (s *MongoStore) DeleteEvent(ctx context.Context, eventID string) error {
	res, err := s.events.DeleteOne(ctx, bson.M{"_id": eventID})
	if err != nil {
		return storeErr("delete event", err)
	}
	if res.DeletedCount == 0 {
		return errdef.NewNotFound("event not found: %s", eventID)
	}
	return s.deleteEventChat(ctx, eventID)
}

func (s *MongoStore) ListEventsByCreator(ctx context.Context, userID string) ([]*models.Event, error) {
	return s.findEvents(ctx, bson.M{"creatorId": userID})
}

func (s *MongoStore) ListEventsByInvitee(ctx context.Context, userID string) ([]*models.Event, error) {
	return s.findEvents(ctx, bson.M{"invites.userId": userID})
}

func (s *MongoStore) ListEventsByStatus(ctx context.Context, status models.EventStatus) ([]*models.Event, error) {
	return s.findEvents(ctx, bson.M{"status": string(status)})
}

func (s *MongoStore) findEvents(ctx context.Context, filter bson.M) ([]*models.Event, error) {
	cursor, err := s.events.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}}))
	if err != nil {
		return nil, storeErr("list events", err)
	}
	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storeErr("decode events", err)
	}
	events := make([]*models.Event, 0, len(docs))
	for i := range docs {
		events = append(events, docs[i].model())
	}
	return events, nil
}

// AddCancelledOccurrence adds date to the cancelled set in place.
func (s *MongoStore) AddCancelledOccurrence(ctx context.Context, eventID string, date time.Time) error {
	res, err := s.events.UpdateOne(ctx, bson.M{"_id": eventID}, bson.M{
		"$addToSet": bson.M{"cancelledOccurrences": instant(date)},
		"$set":      bson.M{"updatedAt": instant(now())},
	})
	if err != nil {
		return storeErr("update cancelled occurrences", err)
	}
	if res.MatchedCount == 0 {
		return errdef.NewNotFound("event not found: %s", eventID)
	}
	return nil
}

// PutFriend upserts the edge friend.UserID -> friend.FriendID.
func (s *MongoStore) PutFriend(ctx context.Context, friend *models.Friend) error {
	if friend.ID == "" {
		friend.ID = uuid.New().String()
	}
	if friend.CreatedAt.IsZero() {
		friend.CreatedAt = now()
	}
	_, err := s.friends.UpdateOne(ctx,
		bson.M{"userId": friend.UserID, "friendId": friend.FriendID},
		bson.M{
			"$set":         bson.M{"status": string(friend.Status)},
			"$setOnInsert": bson.M{"_id": friend.ID, "createdAt": instant(friend.CreatedAt)},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return storeErr("put friend", err)
	}
	return nil
}

func (s *MongoStore) GetFriend(ctx context.Context, userID, friendID string) (*models.Friend, error) {
	var d friendDoc
	err := s.friends.FindOne(ctx, bson.M{"userId": userID, "friendId": friendID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get friend", err)
	}
	return d.model(), nil
}

func (s *MongoStore) DeleteFriend(ctx context.Context, userID, friendID string) error {
	if _, err := s.friends.DeleteOne(ctx, bson.M{"userId": userID, "friendId": friendID}); err != nil {
		return storeErr("delete friend", err)
	}
	return nil
}

func (s *MongoStore) ListFriends(ctx context.Context, userID string, status models.FriendStatus) ([]*models.Friend, error) {
	filter := bson.M{"userId": userID}
	if status != "" {
		filter["status"] = string(status)
	}
	return s.findFriends(ctx, filter)
}

func (s *MongoStore) ListIncomingRequests(ctx context.Context, userID string) ([]*models.Friend, error) {
	return s.findFriends(ctx, bson.M{"friendId": userID, "status": string(models.FriendStatusPending)})
}

func (s *MongoStore) findFriends(ctx context.Context, filter bson.M) ([]*models.Friend, error) {
	cursor, err := s.friends.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, storeErr("list friends", err)
	}
	var docs []friendDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storeErr("decode friends", err)
	}
	friends := make([]*models.Friend, 0, len(docs))
	for i := range docs {
		friends = append(friends, docs[i].model())
	}
	return friends, nil
}

func (s *MongoStore) CreateGroup(ctx context.Context, group *models.FriendGroup) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	t := now()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = t
	}
	group.UpdatedAt = t
	members := group.MemberIDs
	if members == nil {
		members = []string{}
	}
	_, err := s.groups.InsertOne(ctx, groupDoc{
		ID:        group.ID,
		UserID:    group.UserID,
		Name:      group.Name,
		Color:     group.Color,
		MemberIDs: members,
		CreatedAt: instant(group.CreatedAt),
		UpdatedAt: instant(group.UpdatedAt),
	})
	if err != nil {
		return storeErr("insert group", err)
	}
	return nil
}

func (s *MongoStore) GetGroup(ctx context.Context, groupID string) (*models.FriendGroup, error) {
	var d groupDoc
	err := s.groups.FindOne(ctx, bson.M{"_id": groupID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errdef.NewNotFound("group not found: %s", groupID)
	}
	if err != nil {
		return nil, storeErr("get group", err)
	}
	return d.model(), nil
}

func (s *MongoStore) ListGroups(ctx context.Context, userID string) ([]*models.FriendGroup, error) {
	cursor, err := s.groups.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, storeErr("list groups", err)
	}
	var docs []groupDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storeErr("decode groups", err)
	}
	groups := make([]*models.FriendGroup, 0, len(docs))
	for i := range docs {
		groups = append(groups, docs[i].model())
	}
	return groups, nil
}

func (s *MongoStore) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.groups.DeleteOne(ctx, bson.M{"_id": groupID})
	if err != nil {
		return storeErr("delete group", err)
	}
	if res.DeletedCount == 0 {
		return errdef.NewNotFound("group not found: %s", groupID)
	}
	return nil
}

// AddGroupMember adds friendID with $addToSet, so repeating it is a no-op.
func (s *MongoStore) AddGroupMember(ctx context.Context, groupID, friendID string) error {
	return s.updateMembers(ctx, groupID, bson.M{"$addToSet": bson.M{"memberIds": friendID}})
}

// RemoveGroupMember removes friendID with $pull, so repeating it is a no-op.
func (s *MongoStore) RemoveGroupMember(ctx context.Context, groupID, friendID string) error {
	return s.updateMembers(ctx, groupID, bson.M{"$pull": bson.M{"memberIds": friendID}})
}

func (s *MongoStore) updateMembers(ctx context.Context, groupID string, update bson.M) error {
	update["$set"] = bson.M{"updatedAt": instant(now())}
	res, err := s.groups.UpdateOne(ctx, bson.M{"_id": groupID}, update)
	if err != nil {
		return storeErr("update group members", err)
	}
	if res.MatchedCount == 0 {
		return errdef.NewNotFound("group not found: %s", groupID)
	}
	return nil
}

func (s *MongoStore) GetBudget(ctx context.Context, userID, month string) (*models.Budget, error) {
	var d budgetDoc
	err := s.budgets.FindOne(ctx, bson.M{"userId": userID, "month": month}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get budget", err)
	}
	return d.model(), nil
}

func (s *MongoStore) ListBudgets(ctx context.Context, userID string) ([]*models.Budget, error) {
	cursor, err := s.budgets.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "month", Value: -1}}))
	if err != nil {
		return nil, storeErr("list budgets", err)
	}
	var docs []budgetDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storeErr("decode budgets", err)
	}
	budgets := make([]*models.Budget, 0, len(docs))
	for i := range docs {
		budgets = append(budgets, docs[i].model())
	}
	return budgets, nil
}

func (s *MongoStore) SetBudgetLimit(ctx context.Context, userID, month string, limit float64) (*models.Budget, error) {
	t := instant(now())
	return s.upsertBudget(ctx, bson.M{"userId": userID, "month": month}, bson.M{
		"$set":         bson.M{"limit": limit, "updatedAt": t},
		"$setOnInsert": bson.M{"spent": 0.0, "events": bson.A{}, "createdAt": t},
	})
}

// AddBudgetEvent increments spent and appends the entry in a single
// FindOneAndUpdate, so concurrent attributions are applied atomically by the
// server. The filter only matches a budget that does not list the event yet,
// so a second attribution of the same event is a Conflict.
func (s *MongoStore) AddBudgetEvent(ctx context.Context, userID, month string, entry models.BudgetEvent) (*models.Budget, error) {
	t := instant(now())
	filter := bson.M{
		"userId":         userID,
		"month":          month,
		"events.eventId": bson.M{"$ne": entry.EventID},
	}
	b, err := s.upsertBudget(ctx, filter, bson.M{
		"$inc": bson.M{"spent": entry.Cost},
		"$push": bson.M{"events": budgetEventDoc{
			EventID:    entry.EventID,
			EventTitle: entry.EventTitle,
			Cost:       entry.Cost,
			Date:       instant(entry.Date),
		}},
		"$set":         bson.M{"updatedAt": t},
		"$setOnInsert": bson.M{"limit": 0.0, "createdAt": t},
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil, errdef.NewConflict("event %s is already attributed to %s", entry.EventID, month)
	}
	return b, err
}

// upsertBudget applies update to the budget matched by filter, creating it if
// needed. Two concurrent upserts can race on the unique (userId, month) index;
// the loser retries once and then matches the winner's document. A duplicate
// key on the retry means the budget exists but filter excludes it.
func (s *MongoStore) upsertBudget(ctx context.Context, filter, update bson.M) (*models.Budget, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	insert, _ := update["$setOnInsert"].(bson.M)
	insert["_id"] = uuid.New().String()

	var d budgetDoc
	err := s.budgets.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	if mongo.IsDuplicateKeyError(err) {
		err = s.budgets.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	}
	if err != nil {
		return nil, storeErr("update budget", err)
	}
	return d.model(), nil
}

func (s *MongoStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	if n.Data != nil {
		n.Type = n.Data.NotificationType()
	}
	data, err := payloadDoc(n.Data)
	if err != nil {
		return err
	}
	_, err = s.notifications.InsertOne(ctx, notificationDoc{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Data:      data,
		Read:      n.Read,
		CreatedAt: instant(n.CreatedAt),
	})
	if err != nil {
		return storeErr("insert notification", err)
	}
	return nil
}

func (s *MongoStore) ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	cursor, err := s.notifications.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, storeErr("list notifications", err)
	}
	var docs []notificationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storeErr("decode notifications", err)
	}
	out := make([]*models.Notification, 0, len(docs))
	for i := range docs {
		n, err := docs[i].model()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *MongoStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	res, err := s.notifications.UpdateOne(ctx, bson.M{"_id": notificationID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return storeErr("mark notification read", err)
	}
	if res.MatchedCount == 0 {
		return errdef.NewNotFound("notification not found: %s", notificationID)
	}
	return nil
}

func (s *MongoStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.notifications.UpdateMany(ctx, bson.M{"userId": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return storeErr("mark notifications read", err)
	}
	return nil
}
