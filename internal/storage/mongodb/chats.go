package mongodb

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mmynk/gatherly/internal/errdef"
	"github.com/mmynk/gatherly/internal/models"
)

func (s *MongoStore) CreateChat(ctx context.Context, chat *models.Chat) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	t := now()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = t
	}
	chat.UpdatedAt = t
	participants := chat.Participants
	if participants == nil {
		participants = []string{}
	}
	_, err := s.chats.InsertOne(ctx, chatDoc{
		ID:           chat.ID,
		EventID:      chat.EventID,
		Participants: participants,
		CreatedAt:    instant(chat.CreatedAt),
		UpdatedAt:    instant(chat.UpdatedAt),
	})
	if mongo.IsDuplicateKeyError(err) {
		return errdef.NewConflict("event %s already has a chat", chat.EventID)
	}
	if err != nil {
		return storeErr("insert chat", err)
	}
	return nil
}

func (s *MongoStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var d chatDoc
	err := s.chats.FindOne(ctx, bson.M{"_id": chatID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errdef.NewNotFound("chat not found: %s", chatID)
	}
	if err != nil {
		return nil, storeErr("get chat", err)
	}
	return d.model(), nil
}

func (s *MongoStore) GetChatByEvent(ctx context.Context, eventID string) (*models.Chat, error) {
	var d chatDoc
	err := s.chats.FindOne(ctx, bson.M{"eventId": eventID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get chat", err)
	}
	return d.model(), nil
}

// AddChatMessage bumps the chat first so a message is never stored for a
// chat that does not exist.
func (s *MongoStore) AddChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now()
	}
	res, err := s.chats.UpdateOne(ctx,
		bson.M{"_id": msg.ChatID},
		bson.M{"$set": bson.M{"updatedAt": instant(msg.Timestamp)}},
	)
	if err != nil {
		return storeErr("touch chat", err)
	}
	if res.MatchedCount == 0 {
		return errdef.NewNotFound("chat not found: %s", msg.ChatID)
	}
	readBy := msg.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	_, err = s.messages.InsertOne(ctx, chatMessageDoc{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Timestamp: instant(msg.Timestamp),
		ReadBy:    readBy,
	})
	if err != nil {
		return storeErr("insert chat message", err)
	}
	return nil
}

func (s *MongoStore) ListChatMessages(ctx context.Context, chatID string) ([]*models.ChatMessage, error) {
	cursor, err := s.messages.Find(ctx, bson.M{"chatId": chatID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, storeErr("list chat messages", err)
	}
	var docs []chatMessageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storeErr("decode chat messages", err)
	}
	out := make([]*models.ChatMessage, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].model())
	}
	return out, nil
}

// MarkChatMessageRead uses $addToSet so repeated reads are no-ops.
func (s *MongoStore) MarkChatMessageRead(ctx context.Context, chatID, messageID, userID string) error {
	res, err := s.messages.UpdateOne(ctx,
		bson.M{"_id": messageID, "chatId": chatID},
		bson.M{"$addToSet": bson.M{"readBy": userID}},
	)
	if err != nil {
		return storeErr("mark chat message read", err)
	}
	if res.MatchedCount == 0 {
		return errdef.NewNotFound("message %s not found in chat %s", messageID, chatID)
	}
	return nil
}

// deleteEventChat removes the chat of eventID and its messages, if any.
func (s *MongoStore) deleteEventChat(ctx context.Context, eventID string) error {
	c, err := s.GetChatByEvent(ctx, eventID)
	if err != nil || c == nil {
		return err
	}
	if _, err := s.messages.DeleteMany(ctx, bson.M{"chatId": c.ID}); err != nil {
		return storeErr("delete chat messages", err)
	}
	if _, err := s.chats.DeleteOne(ctx, bson.M{"_id": c.ID}); err != nil {
		return storeErr("delete chat", err)
	}
	return nil
}

func (s *MongoStore) CreateTemplate(ctx context.Context, t *models.EventTemplate) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now()
	}
	if _, err := s.templates.InsertOne(ctx, toTemplateDoc(t)); err != nil {
		return storeErr("insert template", err)
	}
	return nil
}

func (s *MongoStore) GetTemplate(ctx context.Context, templateID string) (*models.EventTemplate, error) {
	var d templateDoc
	err := s.templates.FindOne(ctx, bson.M{"_id": templateID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errdef.NewNotFound("template not found: %s", templateID)
	}
	if err != nil {
		return nil, storeErr("get template", err)
	}
	return d.model(), nil
}

func (s *MongoStore) ListTemplates(ctx context.Context, userID string) ([]*models.EventTemplate, error) {
	filter := bson.M{"$or": bson.A{bson.M{"creatorId": userID}, bson.M{"isPublic": true}}}
	cursor, err := s.templates.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, storeErr("list templates", err)
	}
	var docs []templateDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, storeErr("decode templates", err)
	}
	out := make([]*models.EventTemplate, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].model())
	}
	return out, nil
}

func (s *MongoStore) DeleteTemplate(ctx context.Context, templateID string) error {
	res, err := s.templates.DeleteOne(ctx, bson.M{"_id": templateID})
	if err != nil {
		return storeErr("delete template", err)
	}
	if res.DeletedCount == 0 {
		return errdef.NewNotFound("template not found: %s", templateID)
	}
	return nil
}

func (s *MongoStore) GetPreferences(ctx context.Context, userID string) (*models.Preferences, error) {
	var d preferencesDoc
	err := s.preferences.FindOne(ctx, bson.M{"_id": userID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get preferences", err)
	}
	return d.model(), nil
}

func (s *MongoStore) PutPreferences(ctx context.Context, p *models.Preferences) error {
	p.UpdatedAt = now()
	d := preferencesDoc{
		UserID:              p.UserID,
		Language:            p.Language,
		Notifications:       notificationPrefsDoc(p.Notifications),
		DefaultCalendarView: p.DefaultCalendarView,
		Timezone:            p.Timezone,
		UpdatedAt:           instant(p.UpdatedAt),
	}
	_, err := s.preferences.ReplaceOne(ctx, bson.M{"_id": p.UserID}, d, options.Replace().SetUpsert(true))
	if err != nil {
		return storeErr("put preferences", err)
	}
	return nil
}
