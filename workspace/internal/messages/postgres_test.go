package messages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
	"github.com/teamspace-hq/teamspace/workspace/internal/pgtest"
)

func TestPostgresStore_ThreadLifecycle(t *testing.T) {
	store := NewPostgresStore(pgtest.Start(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	thread := Thread{
		ID:        "t1",
		CompanyID: "c1",
		CreatedBy: "alice",
		CreatedAt: base,
		Participants: []Participant{
			{Type: ParticipantChannel, ID: "general", CompanyID: "c1", WorkspaceID: "w1"},
		},
	}
	head := Message{
		ID: "t1", ThreadID: "t1", CompanyID: "c1", WorkspaceID: "w1", ChannelID: "general",
		UserID: "alice", Text: "hello", CreatedAt: base, UpdatedAt: base,
	}
	require.NoError(t, store.CreateThread(ctx, thread, head))

	got, err := store.GetThread(ctx, "c1", "t1")
	require.NoError(t, err)
	assert.Equal(t, thread.Participants, got.Participants)
	assert.True(t, got.CreatedAt.Equal(base))

	for i := 1; i <= 3; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		ok, err := store.InsertMessage(ctx, Message{
			ID: "r" + string(rune('0'+i)), ThreadID: "t1", CompanyID: "c1", WorkspaceID: "w1", ChannelID: "general",
			UserID: "bob", Text: "reply", CreatedAt: at, UpdatedAt: at,
			Files: []MessageFile{{ID: "f", Metadata: FileMetadata{Name: "a.txt", Size: 3}}},
		})
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := store.InsertMessage(ctx, Message{ID: "r1", ThreadID: "t1", CompanyID: "c1", CreatedAt: base, UpdatedAt: base})
	require.NoError(t, err)
	assert.False(t, ok, "duplicate id")
	ok, err = store.InsertMessage(ctx, Message{ID: "x", ThreadID: "gone", CompanyID: "c1", CreatedAt: base, UpdatedAt: base})
	require.NoError(t, err)
	assert.False(t, ok, "missing thread")

	n, err := store.CountReplies(ctx, "c1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := store.ListMessages(ctx, "c1", "t1", nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "t1", page[0].ID)
	assert.Equal(t, "r1", page[1].ID)
	assert.Empty(t, page[0].Files)
	require.Len(t, page[1].Files, 1)
	assert.Equal(t, "a.txt", page[1].Files[0].Metadata.Name)

	page, err = store.ListMessages(ctx, "c1", "t1", &pagination.Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID}, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "r2", page[0].ID)
	assert.Equal(t, "r3", page[1].ID)

	edited := page[0]
	edited.Text = "edited"
	edited.Files = nil
	edited.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, store.UpdateMessage(ctx, edited))
	msg, err := store.GetMessage(ctx, "c1", "t1", "r2")
	require.NoError(t, err)
	assert.Equal(t, "edited", msg.Text)
	assert.Empty(t, msg.Files)

	assert.ErrorIs(t, store.UpdateMessage(ctx, Message{CompanyID: "c1", ThreadID: "t1", ID: "nope"}), ErrMessageNotFound)

	deleted, err := store.DeleteMessage(ctx, "c1", "t1", "r3")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = store.GetMessage(ctx, "c1", "t1", "r3")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	deleted, err = store.DeleteThread(ctx, "c1", "t1")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = store.GetThread(ctx, "c1", "t1")
	assert.ErrorIs(t, err, ErrThreadNotFound)
	_, err = store.GetMessage(ctx, "c1", "t1", "r1")
	assert.ErrorIs(t, err, ErrMessageNotFound, "messages are removed with their thread")
}
