package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zbir99/linkdeal-app-sub001/db"
	"github.com/zbir99/linkdeal-app-sub001/models"
)

var (
	ErrInvalidConversation  = errors.New("invalid conversation")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrPersistence marks every failure reported by the underlying database.
	ErrPersistence = errors.New("conversation persistence failure")
)

const (
	insertConversationQuery = "INSERT INTO mentee_conversations(conversation, session_id, messages, message_count, date_created, date_modified) VALUES($1, $2, $3, $4, datetime('now'), datetime('now'))"
	selectConversationQuery = "SELECT * FROM mentee_conversations WHERE id=$1"
	selectBySessionQuery    = "SELECT * FROM mentee_conversations WHERE session_id=$1 ORDER BY id ASC"
	updateMessagesQuery     = "UPDATE mentee_conversations SET messages=$1, message_count=$2, date_modified=datetime('now') WHERE id=$3"
	deleteConversationQuery = "DELETE FROM mentee_conversations WHERE id=$1"
)

// ConversationStore persists mentee conversation records.
type ConversationStore struct {
	dbManager *db.DBManager
	logger    *zap.Logger
}

func NewConversationStore(dbManager *db.DBManager, logger *zap.Logger) *ConversationStore {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConversationStore{
		dbManager: dbManager,
		logger:    logger,
	}
}

// Create writes a new conversation record and returns it as read back from
// the database. The four caller-supplied fields are stored unchanged, except
// that messages without a timestamp are stamped with the current time.
func (s *ConversationStore) Create(ctx context.Context, conversation, sessionID string, messages models.Messages, messageCount int) (*models.MenteeConversation, error) {
	if conversation == "" {
		return nil, errors.Wrap(ErrInvalidConversation, "conversation is required")
	}
	if sessionID == "" {
		return nil, errors.Wrap(ErrInvalidConversation, "session_id is required")
	}
	if messageCount < 0 {
		return nil, errors.Wrapf(ErrInvalidConversation, "message_count must not be negative, got %d", messageCount)
	}
	messages, err := normalizeMessages(messages)
	if err != nil {
		return nil, err
	}

	if messageCount != len(messages) {
		s.logger.Warn("message_count does not match messages",
			zap.String("session_id", sessionID),
			zap.Int("message_count", messageCount),
			zap.Int("messages", len(messages)))
	}

	result, err := s.dbManager.DB.ExecContext(ctx, insertConversationQuery, conversation, sessionID, messages, messageCount)
	if err != nil {
		return nil, persistenceError("create conversation", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, persistenceError("create conversation", err)
	}

	record, err := getConversation(ctx, s.dbManager.DB, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversation created",
		zap.Int64("id", record.ID),
		zap.String("session_id", record.SessionID))

	return record, nil
}

func (s *ConversationStore) Get(ctx context.Context, id int64) (*models.MenteeConversation, error) {
	return getConversation(ctx, s.dbManager.DB, id)
}

// ListBySession returns the session's conversations in creation order.
func (s *ConversationStore) ListBySession(ctx context.Context, sessionID string) ([]models.MenteeConversation, error) {
	conversations := make([]models.MenteeConversation, 0)

	err := s.dbManager.DB.SelectContext(ctx, &conversations, selectBySessionQuery, sessionID)
	if err != nil {
		return nil, persistenceError("list conversations", err)
	}

	return conversations, nil
}

// AppendMessage adds message to the end of the transcript. message_count is
// recomputed from the stored messages in the same transaction.
func (s *ConversationStore) AppendMessage(ctx context.Context, id int64, message models.Message) (*models.MenteeConversation, error) {
	message, err := normalizeMessage(message)
	if err != nil {
		return nil, err
	}

	var updated *models.MenteeConversation
	err = s.withTx(ctx, "append message", func(tx *sqlx.Tx) error {
		record, err := getConversation(ctx, tx, id)
		if err != nil {
			return err
		}

		messages := make(models.Messages, 0, len(record.Messages)+1)
		messages = append(messages, record.Messages...)
		messages = append(messages, message)

		updated, err = updateMessages(ctx, tx, id, messages)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("message appended",
		zap.Int64("id", id),
		zap.String("role", message.Role),
		zap.Int("message_count", updated.MessageCount))

	return updated, nil
}

// ReplaceMessages overwrites the transcript; message_count follows len(messages).
func (s *ConversationStore) ReplaceMessages(ctx context.Context, id int64, messages models.Messages) (*models.MenteeConversation, error) {
	messages, err := normalizeMessages(messages)
	if err != nil {
		return nil, err
	}

	var updated *models.MenteeConversation
	err = s.withTx(ctx, "replace messages", func(tx *sqlx.Tx) error {
		if _, err := getConversation(ctx, tx, id); err != nil {
			return err
		}

		var err error
		updated, err = updateMessages(ctx, tx, id, messages)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *ConversationStore) Delete(ctx context.Context, id int64) error {
	result, err := s.dbManager.DB.ExecContext(ctx, deleteConversationQuery, id)
	if err != nil {
		return persistenceError("delete conversation", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistenceError("delete conversation", err)
	}
	if affected == 0 {
		return errors.Wrapf(ErrConversationNotFound, "id %d", id)
	}

	s.logger.Info("conversation deleted", zap.Int64("id", id))
	return nil
}

func (s *ConversationStore) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.dbManager.DB.BeginTxx(ctx, nil)
	if err != nil {
		return persistenceError(op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return persistenceError(op, err)
	}
	return nil
}

func getConversation(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.MenteeConversation, error) {
	record := models.MenteeConversation{}

	err := sqlx.GetContext(ctx, q, &record, selectConversationQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrConversationNotFound, "id %d", id)
	}
	if err != nil {
		return nil, persistenceError("get conversation", err)
	}

	return &record, nil
}

func updateMessages(ctx context.Context, tx *sqlx.Tx, id int64, messages models.Messages) (*models.MenteeConversation, error) {
	if _, err := tx.ExecContext(ctx, updateMessagesQuery, messages, len(messages), id); err != nil {
		return nil, persistenceError("update messages", err)
	}

	return getConversation(ctx, tx, id)
}

// normalizeMessage rejects entries that cannot be stored byte for byte and
// stamps entries that carry no timestamp.
func normalizeMessage(message models.Message) (models.Message, error) {
	if strings.TrimSpace(message.Role) == "" {
		return message, errors.Wrap(ErrInvalidMessage, "role is required")
	}
	if !utf8.ValidString(message.Role) || !utf8.ValidString(message.Content) {
		return message, errors.Wrap(ErrInvalidMessage, "role and content must be valid UTF-8")
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	return message, nil
}

func normalizeMessages(messages models.Messages) (models.Messages, error) {
	normalized := make(models.Messages, 0, len(messages))
	for i, m := range messages {
		m, err := normalizeMessage(m)
		if err != nil {
			return nil, errors.Wrapf(err, "message %d", i)
		}
		normalized = append(normalized, m)
	}
	return normalized, nil
}

func persistenceError(op string, err error) error {
	return errors.WithStack(fmt.Errorf("%s: %w: %w", op, ErrPersistence, err))
}
