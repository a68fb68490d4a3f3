package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/twinj/uuid"
	"go.uber.org/zap"

	"github.com/zbir99/linkdeal-app-sub001/models"
	"github.com/zbir99/linkdeal-app-sub001/store"
)

const (
	errorCodeBadRequest  = "1"
	errorCodeNotFound    = "2"
	errorCodePersistence = "3"
)

// ConversationStore is implemented by store.ConversationStore.
type ConversationStore interface {
	Create(ctx context.Context, conversation, sessionID string, messages models.Messages, messageCount int) (*models.MenteeConversation, error)
	Get(ctx context.Context, id int64) (*models.MenteeConversation, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.MenteeConversation, error)
	AppendMessage(ctx context.Context, id int64, message models.Message) (*models.MenteeConversation, error)
	Delete(ctx context.Context, id int64) error
}

type ConversationController struct {
	Store  ConversationStore
	Logger *zap.Logger
}

type createConversationRequest struct {
	Conversation string          `json:"conversation"`
	SessionID    string          `json:"session_id"`
	Messages     models.Messages `json:"messages"`
	MessageCount *int            `json:"message_count"`
}

type appendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (conversationController *ConversationController) RegisterRoutes(r chi.Router) {
	r.Post("/conversations", conversationController.CreateConversation)
	r.Get("/conversations/{conversationID}", conversationController.GetConversation)
	r.Post("/conversations/{conversationID}/messages", conversationController.AppendMessage)
	r.Delete("/conversations/{conversationID}", conversationController.DeleteConversation)
	r.Get("/sessions/{sessionID}/conversations", conversationController.ListSessionConversations)
}

func (conversationController *ConversationController) CreateConversation(w http.ResponseWriter, r *http.Request) {
	setJSONHeaders(w)

	var payload createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, errorCodeBadRequest, "Invalid JSON")
		return
	}

	sessionID := strings.TrimSpace(payload.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewV4().String()
	}

	messageCount := len(payload.Messages)
	if payload.MessageCount != nil {
		messageCount = *payload.MessageCount
	}

	record, err := conversationController.Store.Create(r.Context(), payload.Conversation, sessionID, payload.Messages, messageCount)
	if err != nil {
		conversationController.respondStoreError(w, "create conversation", err)
		return
	}

	respondSuccess(w, http.StatusCreated, record)
}

func (conversationController *ConversationController) GetConversation(w http.ResponseWriter, r *http.Request) {
	setJSONHeaders(w)

	id, ok := conversationIDParam(w, r)
	if !ok {
		return
	}

	record, err := conversationController.Store.Get(r.Context(), id)
	if err != nil {
		conversationController.respondStoreError(w, "get conversation", err)
		return
	}

	respondSuccess(w, http.StatusOK, record)
}

func (conversationController *ConversationController) ListSessionConversations(w http.ResponseWriter, r *http.Request) {
	setJSONHeaders(w)

	// chi hands back the escaped segment when the path carries %2F.
	sessionID, err := url.PathUnescape(chi.URLParam(r, "sessionID"))
	if err != nil || sessionID == "" {
		respondError(w, http.StatusBadRequest, errorCodeBadRequest, "Invalid session id")
		return
	}

	conversations, err := conversationController.Store.ListBySession(r.Context(), sessionID)
	if err != nil {
		conversationController.respondStoreError(w, "list conversations", err)
		return
	}

	respondSuccess(w, http.StatusOK, conversations)
}

func (conversationController *ConversationController) AppendMessage(w http.ResponseWriter, r *http.Request) {
	setJSONHeaders(w)

	id, ok := conversationIDParam(w, r)
	if !ok {
		return
	}

	var payload appendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, errorCodeBadRequest, "Invalid JSON")
		return
	}

	record, err := conversationController.Store.AppendMessage(r.Context(), id, models.Message{
		Role:    payload.Role,
		Content: payload.Content,
	})
	if err != nil {
		conversationController.respondStoreError(w, "append message", err)
		return
	}

	respondSuccess(w, http.StatusOK, record)
}

func (conversationController *ConversationController) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	setJSONHeaders(w)

	id, ok := conversationIDParam(w, r)
	if !ok {
		return
	}

	if err := conversationController.Store.Delete(r.Context(), id); err != nil {
		conversationController.respondStoreError(w, "delete conversation", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]string{"message": "Successfully deleted"})
}

func (conversationController *ConversationController) respondStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidConversation), errors.Is(err, store.ErrInvalidMessage):
		respondError(w, http.StatusBadRequest, errorCodeBadRequest, err.Error())
	case errors.Is(err, store.ErrConversationNotFound):
		respondError(w, http.StatusNotFound, errorCodeNotFound, "Not Found")
	default:
		conversationController.logger().Error(op+" failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, errorCodePersistence, "System Error")
	}
}

func (conversationController *ConversationController) logger() *zap.Logger {
	if conversationController.Logger == nil {
		return zap.NewNop()
	}
	return conversationController.Logger
}

func conversationIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "conversationID")

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, errorCodeBadRequest, "Invalid conversation id")
		return 0, false
	}
	return id, true
}
