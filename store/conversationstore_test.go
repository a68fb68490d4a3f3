package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zbir99/linkdeal-app-sub001/db"
	"github.com/zbir99/linkdeal-app-sub001/models"
)

func newTestStore(t *testing.T) (*ConversationStore, *db.DBManager) {
	t.Helper()

	dbManager, err := db.NewDBConnection(filepath.Join(t.TempDir(), "conversations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbManager.Close() })

	return NewConversationStore(dbManager, zap.NewNop()), dbManager
}

func TestConversationStore_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("empty conversation", func(t *testing.T) {
		s, _ := newTestStore(t)

		record, err := s.Create(ctx, "test", "test-debug", models.Messages{}, 0)
		require.NoError(t, err)

		assert.NotZero(t, record.ID)
		assert.Equal(t, "test", record.Conversation)
		assert.Equal(t, "test-debug", record.SessionID)
		assert.Equal(t, models.Messages{}, record.Messages)
		assert.Equal(t, 0, record.MessageCount)
		assert.False(t, record.DateCreated.IsZero())
	})

	t.Run("nil messages stored as empty", func(t *testing.T) {
		s, _ := newTestStore(t)

		record, err := s.Create(ctx, "intro", "session-1", nil, 0)
		require.NoError(t, err)
		assert.NotNil(t, record.Messages)
		assert.Empty(t, record.Messages)
	})

	t.Run("fields echo inputs", func(t *testing.T) {
		s, _ := newTestStore(t)
		ts := time.Date(2025, 5, 4, 9, 30, 0, 0, time.UTC)
		messages := models.Messages{
			{Role: models.RoleSystem, Content: "You help mentees find mentors.", Timestamp: ts},
			{Role: models.RoleHuman, Content: "I want to learn Go.", Timestamp: ts.Add(time.Second)},
		}

		record, err := s.Create(ctx, "onboarding", "session-42", messages, 2)
		require.NoError(t, err)

		assert.Equal(t, "onboarding", record.Conversation)
		assert.Equal(t, "session-42", record.SessionID)
		assert.Equal(t, messages, record.Messages)
		assert.Equal(t, 2, record.MessageCount)
	})

	t.Run("mismatched count is echoed", func(t *testing.T) {
		s, _ := newTestStore(t)

		record, err := s.Create(ctx, "legacy import", "session-7", models.Messages{}, 5)
		require.NoError(t, err)
		assert.Equal(t, 5, record.MessageCount)
		assert.Empty(t, record.Messages)
	})

	t.Run("identifiers are unique", func(t *testing.T) {
		s, _ := newTestStore(t)
		seen := make(map[int64]bool)

		for i := 0; i < 10; i++ {
			record, err := s.Create(ctx, "test", "test-debug", models.Messages{}, 0)
			require.NoError(t, err)
			assert.False(t, seen[record.ID], "identifier %d reused", record.ID)
			seen[record.ID] = true
		}
	})

	t.Run("identifiers are not reused after delete", func(t *testing.T) {
		s, _ := newTestStore(t)

		first, err := s.Create(ctx, "test", "test-debug", models.Messages{}, 0)
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, first.ID))

		second, err := s.Create(ctx, "test", "test-debug", models.Messages{}, 0)
		require.NoError(t, err)
		assert.Greater(t, second.ID, first.ID)
	})
}

func TestConversationStore_CreateInvalid(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		conversation string
		sessionID    string
		count        int
	}{
		{name: "empty conversation", conversation: "", sessionID: "s", count: 0},
		{name: "empty session", conversation: "c", sessionID: "", count: 0},
		{name: "negative count", conversation: "c", sessionID: "s", count: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.conversation, tt.sessionID, models.Messages{}, tt.count)
			assert.ErrorIs(t, err, ErrInvalidConversation)
			assert.NotErrorIs(t, err, ErrPersistence)
		})
	}

	list, err := s.ListBySession(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConversationStore_CreateKeepsWhitespaceFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	record, err := s.Create(ctx, "   ", "\t", models.Messages{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "   ", record.Conversation)
	assert.Equal(t, "\t", record.SessionID)

	list, err := s.ListBySession(ctx, "\t")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, record.ID, list[0].ID)
}

func TestConversationStore_CreateNormalizesMessages(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	record, err := s.Create(ctx, "c", "s", models.Messages{{Role: models.RoleHuman, Content: "hi"}}, 1)
	require.NoError(t, err)
	require.Len(t, record.Messages, 1)
	assert.False(t, record.Messages[0].Timestamp.IsZero())

	_, err = s.Create(ctx, "c", "s", models.Messages{{Role: " ", Content: "no role"}}, 1)
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.NotErrorIs(t, err, ErrPersistence)

	list, err := s.ListBySession(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestConversationStore_RejectsInvalidUTF8(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	record, err := s.Create(ctx, "c", "s", models.Messages{}, 0)
	require.NoError(t, err)

	badContent := models.Message{Role: models.RoleHuman, Content: "bad\xffbyte"}
	badRole := models.Message{Role: "hu\xc3man", Content: "fine"}

	for _, m := range []models.Message{badContent, badRole} {
		_, err = s.Create(ctx, "c", "s", models.Messages{m}, 1)
		assert.ErrorIs(t, err, ErrInvalidMessage)

		_, err = s.AppendMessage(ctx, record.ID, m)
		assert.ErrorIs(t, err, ErrInvalidMessage)

		_, err = s.ReplaceMessages(ctx, record.ID, models.Messages{m})
		assert.ErrorIs(t, err, ErrInvalidMessage)
	}

	got, err := s.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
	assert.Equal(t, 0, got.MessageCount)
}

func TestConversationStore_Unreachable(t *testing.T) {
	s, dbManager := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, dbManager.Close())

	_, err := s.Create(ctx, "test", "test-debug", models.Messages{}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "create conversation")

	_, err = s.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrPersistence)

	_, err = s.AppendMessage(ctx, 1, models.Message{Role: models.RoleHuman, Content: "hi"})
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestConversationStore_GetAndList(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "first", "session-a", models.Messages{}, 0)
	require.NoError(t, err)
	b, err := s.Create(ctx, "second", "session-a", models.Messages{}, 0)
	require.NoError(t, err)
	_, err = s.Create(ctx, "other", "session-b", models.Messages{}, 0)
	require.NoError(t, err)

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Conversation)

	_, err = s.Get(ctx, 9999)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	list, err := s.ListBySession(ctx, "session-a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	list, err = s.ListBySession(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestConversationStore_AppendMessage(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	record, err := s.Create(ctx, "mentoring", "session-1", models.Messages{}, 0)
	require.NoError(t, err)

	updated, err := s.AppendMessage(ctx, record.ID, models.Message{Role: models.RoleHuman, Content: "Who can teach me Kubernetes?"})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.MessageCount)
	require.Len(t, updated.Messages, 1)
	assert.Equal(t, "Who can teach me Kubernetes?", updated.Messages[0].Content)
	assert.False(t, updated.Messages[0].Timestamp.IsZero())

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	updated, err = s.AppendMessage(ctx, record.ID, models.Message{Role: models.RoleAI, Content: "Try Ana.", Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.MessageCount)
	require.Len(t, updated.Messages, 2)
	assert.Equal(t, models.RoleHuman, updated.Messages[0].Role)
	assert.Equal(t, models.RoleAI, updated.Messages[1].Role)
	assert.True(t, ts.Equal(updated.Messages[1].Timestamp))

	got, err := s.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, len(got.Messages), got.MessageCount)
}

func TestConversationStore_AppendMessageRepairsCount(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	record, err := s.Create(ctx, "legacy", "session-1", models.Messages{}, 3)
	require.NoError(t, err)

	updated, err := s.AppendMessage(ctx, record.ID, models.Message{Role: models.RoleHuman, Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.MessageCount)
}

func TestConversationStore_AppendMessageConcurrent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	record, err := s.Create(ctx, "busy", "session-1", models.Messages{}, 0)
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AppendMessage(ctx, record.ID, models.Message{
				Role:    models.RoleHuman,
				Content: fmt.Sprintf("message %d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	got, err := s.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, writers)
	assert.Equal(t, writers, got.MessageCount)
}

func TestConversationStore_AppendMessageErrors(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AppendMessage(ctx, 42, models.Message{Role: models.RoleHuman, Content: "hi"})
	assert.ErrorIs(t, err, ErrConversationNotFound)

	record, err := s.Create(ctx, "c", "s", models.Messages{}, 0)
	require.NoError(t, err)

	_, err = s.AppendMessage(ctx, record.ID, models.Message{Content: "no role"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestConversationStore_ReplaceMessages(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	record, err := s.Create(ctx, "c", "s", models.Messages{{Role: models.RoleHuman, Content: "old"}}, 1)
	require.NoError(t, err)

	updated, err := s.ReplaceMessages(ctx, record.ID, models.Messages{
		{Role: models.RoleSystem, Content: "a"},
		{Role: models.RoleHuman, Content: "b"},
		{Role: models.RoleAI, Content: "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.MessageCount)
	assert.Len(t, updated.Messages, 3)

	cleared, err := s.ReplaceMessages(ctx, record.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cleared.MessageCount)
	assert.Empty(t, cleared.Messages)

	_, err = s.ReplaceMessages(ctx, 777, models.Messages{})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationStore_ReplaceMessagesNormalizes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	record, err := s.Create(ctx, "c", "s", models.Messages{}, 0)
	require.NoError(t, err)

	updated, err := s.ReplaceMessages(ctx, record.ID, models.Messages{{Role: models.RoleAI, Content: "stamped"}})
	require.NoError(t, err)
	require.Len(t, updated.Messages, 1)
	assert.False(t, updated.Messages[0].Timestamp.IsZero())

	_, err = s.ReplaceMessages(ctx, record.ID, models.Messages{
		{Role: models.RoleHuman, Content: "ok"},
		{Role: "", Content: "no role"},
	})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Contains(t, err.Error(), "message 1")

	got, err := s.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "stamped", got.Messages[0].Content)
}

func TestConversationStore_Delete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	record, err := s.Create(ctx, "c", "s", models.Messages{}, 0)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, record.ID))

	_, err = s.Get(ctx, record.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	err = s.Delete(ctx, record.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
