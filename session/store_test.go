package session

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	store, err := NewStore(db, "sqlite3")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", Message{Role: "user", Content: "Điểm chuẩn năm 2024?"}))
	require.NoError(t, store.Append(ctx, "s1", Message{
		Role:     "assistant",
		Content:  "Điểm chuẩn là 26.5.",
		Metadata: map[string]any{"intent": "score_lookup"},
	}))

	messages, err := store.History(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "score_lookup", messages[1].Metadata["intent"])
	assert.False(t, messages[0].CreatedAt.IsZero())
}

func TestHistoryLimitKeepsMostRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"một", "hai", "ba", "bốn"} {
		require.NoError(t, store.Append(ctx, "s1", Message{Role: "user", Content: content}))
	}

	messages, err := store.History(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "ba", messages[0].Content)
	assert.Equal(t, "bốn", messages[1].Content)
}

func TestHistoryIsolatesSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", Message{Role: "user", Content: "xin chào"}))
	require.NoError(t, store.Append(ctx, "s2", Message{Role: "user", Content: "tạm biệt"}))

	messages, err := store.History(ctx, "s2", 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "tạm biệt", messages[0].Content)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", Message{Role: "user", Content: "xin chào"}))
	require.NoError(t, store.Delete(ctx, "s1"))

	messages, err := store.History(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, messages)

	assert.ErrorIs(t, store.Delete(ctx, "s1"), ErrSessionNotFound)
}

func TestNewStoreRejectsUnknownDialect(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = NewStore(db, "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dialect")
}
