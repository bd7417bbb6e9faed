package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/gatherly/internal/chat"
	"github.com/mmynk/gatherly/internal/middleware"
	"github.com/mmynk/gatherly/internal/models"
)

const ChatServiceName = "ChatService"

// ChatService implements the Connect ChatService.
type ChatService struct {
	chats *chat.Service
}

func NewChatService(chats *chat.Service) *ChatService {
	return &ChatService{chats: chats}
}

// Handler returns the path prefix and handler serving every ChatService method.
func (s *ChatService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRoutes(ChatServiceName, opts)
	unary(r, "GetEventChat", s.GetEventChat)
	unary(r, "SendMessage", s.SendMessage)
	unary(r, "ListMessages", s.ListMessages)
	unary(r, "MarkMessageRead", s.MarkMessageRead)
	serverStream(r, "WatchChat", s.WatchChat)
	return r.handler()
}

type ChatRequest struct {
	ChatID string `json:"chatId"`
}

type ChatResponse struct {
	Chat *models.Chat `json:"chat"`
}

type SendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

type MessageResponse struct {
	Message *models.ChatMessage `json:"message"`
}

type ListMessagesResponse struct {
	Messages []*models.ChatMessage `json:"messages"`
}

type MarkMessageReadRequest struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

// GetEventChat returns the chat of an event the caller can see, opening it
// if the event has none yet.
func (s *ChatService) GetEventChat(ctx context.Context, req *connect.Request[EventRequest]) (*connect.Response[ChatResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetEventChat request received", "event_id", req.Msg.EventID)

	c, err := s.chats.ForEvent(ctx, userID, req.Msg.EventID)
	if err != nil {
		return nil, fail("GetEventChat", err, "event_id", req.Msg.EventID)
	}
	return connect.NewResponse(&ChatResponse{Chat: c}), nil
}

// SendMessage posts a message as the caller and notifies the other members.
func (s *ChatService) SendMessage(ctx context.Context, req *connect.Request[SendMessageRequest]) (*connect.Response[MessageResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("SendMessage request received", "chat_id", req.Msg.ChatID, "length", len(req.Msg.Content))

	msg, err := s.chats.Send(ctx, userID, middleware.GetName(ctx), req.Msg.ChatID, req.Msg.Content)
	if err != nil {
		return nil, fail("SendMessage", err, "chat_id", req.Msg.ChatID)
	}
	slog.Info("Message sent", "chat_id", msg.ChatID, "message_id", msg.ID)
	return connect.NewResponse(&MessageResponse{Message: msg}), nil
}

// ListMessages returns a chat's messages, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, req *connect.Request[ChatRequest]) (*connect.Response[ListMessagesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListMessages request received", "chat_id", req.Msg.ChatID)

	messages, err := s.chats.Messages(ctx, userID, req.Msg.ChatID)
	if err != nil {
		return nil, fail("ListMessages", err, "chat_id", req.Msg.ChatID)
	}
	slog.Info("ListMessages successful", "count", len(messages))
	return connect.NewResponse(&ListMessagesResponse{Messages: nonNil(messages)}), nil
}

func (s *ChatService) MarkMessageRead(ctx context.Context, req *connect.Request[MarkMessageReadRequest]) (*connect.Response[Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("MarkMessageRead request received", "chat_id", req.Msg.ChatID, "message_id", req.Msg.MessageID)

	if err := s.chats.MarkRead(ctx, userID, req.Msg.ChatID, req.Msg.MessageID); err != nil {
		return nil, fail("MarkMessageRead", err, "chat_id", req.Msg.ChatID, "message_id", req.Msg.MessageID)
	}
	return connect.NewResponse(&Empty{}), nil
}

// WatchChat streams the chat's messages: the current list first, then the
// full list again after every new message.
func (s *ChatService) WatchChat(ctx context.Context, req *connect.Request[ChatRequest], stream *connect.ServerStream[ListMessagesResponse]) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}
	slog.Info("WatchChat request received", "chat_id", req.Msg.ChatID)

	updates, err := s.chats.Watch(ctx, userID, req.Msg.ChatID)
	if err != nil {
		return fail("WatchChat", err, "chat_id", req.Msg.ChatID)
	}
	for list := range updates {
		if err := stream.Send(&ListMessagesResponse{Messages: nonNil(list)}); err != nil {
			slog.Debug("WatchChat stream closed", "error", err)
			return nil
		}
	}
	return nil
}
