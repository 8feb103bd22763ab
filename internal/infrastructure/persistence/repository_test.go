package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"modmail/internal/domain/ticket"
	"modmail/internal/shared/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection, one in-memory database.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&TicketModel{}, &MessageLinkModel{})
	require.NoError(t, err)

	return db
}

func createTestTicket(t *testing.T, userID, dmChannelID, threadID int64) *ticket.Ticket {
	tk, err := ticket.NewTicket(userID, dmChannelID, threadID)
	require.NoError(t, err)
	return tk
}

func TestTicketRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTicketRepository(db, logger.NewLogger())
	ctx := context.Background()

	t.Run("create and read back", func(t *testing.T) {
		tk := createTestTicket(t, 10, 20, 30)
		require.NoError(t, repo.Create(ctx, tk))

		found, err := repo.GetByUser(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(20), found.DMChannelID())
		assert.Equal(t, int64(30), found.ThreadID())
		assert.False(t, found.IsOpen())
	})

	t.Run("second ticket for same user reports conflict", func(t *testing.T) {
		tk1 := createTestTicket(t, 11, 21, 31)
		require.NoError(t, repo.Create(ctx, tk1))

		tk2 := createTestTicket(t, 11, 22, 32)
		err := repo.Create(ctx, tk2)
		assert.ErrorIs(t, err, ticket.ErrTicketExists)
	})

	t.Run("lookup by dm channel and thread", func(t *testing.T) {
		tk := createTestTicket(t, 12, 23, 33)
		require.NoError(t, repo.Create(ctx, tk))

		byDM, err := repo.GetByDMChannel(ctx, 23)
		require.NoError(t, err)
		assert.Equal(t, int64(12), byDM.UserID())

		byThread, err := repo.GetByThread(ctx, 33)
		require.NoError(t, err)
		assert.Equal(t, int64(12), byThread.UserID())
	})

	t.Run("missing ticket", func(t *testing.T) {
		_, err := repo.GetByUser(ctx, 999)
		assert.ErrorIs(t, err, ticket.ErrTicketNotFound)
	})
}

func TestTicketRepository_SetOpen(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTicketRepository(db, logger.NewLogger())
	ctx := context.Background()

	tk := createTestTicket(t, 40, 41, 42)
	require.NoError(t, repo.Create(ctx, tk))

	require.NoError(t, repo.SetOpen(ctx, 40, true))
	found, err := repo.GetByUser(ctx, 40)
	require.NoError(t, err)
	assert.True(t, found.IsOpen())

	require.NoError(t, repo.SetOpen(ctx, 40, false))
	found, err = repo.GetByUser(ctx, 40)
	require.NoError(t, err)
	assert.False(t, found.IsOpen())

	assert.ErrorIs(t, repo.SetOpen(ctx, 999, true), ticket.ErrTicketNotFound)
}

func TestTicketRepository_DeleteByThread(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTicketRepository(db, logger.NewLogger())
	ctx := context.Background()

	tk := createTestTicket(t, 50, 51, 52)
	require.NoError(t, repo.Create(ctx, tk))

	require.NoError(t, repo.DeleteByThread(ctx, 52))
	_, err := repo.GetByUser(ctx, 50)
	assert.ErrorIs(t, err, ticket.ErrTicketNotFound)

	// same user can get a brand-new ticket afterwards
	fresh := createTestTicket(t, 50, 53, 54)
	require.NoError(t, repo.Create(ctx, fresh))

	// deleting an unknown thread is not an error
	assert.NoError(t, repo.DeleteByThread(ctx, 9999))
}

func TestMessageLinkRepository_Resolve(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageLinkRepository(db, logger.NewLogger())
	ctx := context.Background()

	link, err := ticket.NewMessageLink(1, 5, 101)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, link))
	assert.NotZero(t, link.ID())

	t.Run("resolves original mirror", func(t *testing.T) {
		id, err := repo.ResolveThreadMsg(ctx, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(101), id)
	})

	t.Run("edit redirects lookups without touching thread_msg_id", func(t *testing.T) {
		require.NoError(t, repo.RecordThreadUpdate(ctx, 1, 5, 102))

		id, err := repo.ResolveThreadMsg(ctx, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(102), id)

		var model MessageLinkModel
		require.NoError(t, db.Where("user_id = ? AND dm_msg_id = ?", 1, 5).First(&model).Error)
		assert.Equal(t, int64(101), model.ThreadMsgID)
	})

	t.Run("reverse lookup by thread message id", func(t *testing.T) {
		id, err := repo.ResolveDMMsg(ctx, 1, 101)
		require.NoError(t, err)
		assert.Equal(t, int64(5), id)
	})

	t.Run("most recently inserted row wins", func(t *testing.T) {
		newer, err := ticket.NewMessageLink(1, 5, 201)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, newer))

		id, err := repo.ResolveThreadMsg(ctx, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(201), id)
	})

	t.Run("missing link", func(t *testing.T) {
		_, err := repo.ResolveThreadMsg(ctx, 1, 999)
		assert.ErrorIs(t, err, ticket.ErrMessageLinkNotFound)
		assert.ErrorIs(t, repo.RecordThreadUpdate(ctx, 1, 999, 300), ticket.ErrMessageLinkNotFound)
	})
}

func TestMessageLinkRepository_DeleteResolving(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageLinkRepository(db, logger.NewLogger())
	ctx := context.Background()

	t.Run("returns original mirror id when never edited", func(t *testing.T) {
		link, err := ticket.NewMessageLink(2, 6, 110)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, link))

		resolved, err := repo.DeleteResolving(ctx, 2, 6)
		require.NoError(t, err)
		assert.Equal(t, int64(110), resolved)

		_, err = repo.ResolveThreadMsg(ctx, 2, 6)
		assert.ErrorIs(t, err, ticket.ErrMessageLinkNotFound)
	})

	t.Run("returns follow-up id when edited", func(t *testing.T) {
		link, err := ticket.NewMessageLink(2, 7, 120)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, link))
		require.NoError(t, repo.RecordThreadUpdate(ctx, 2, 7, 121))

		resolved, err := repo.DeleteResolving(ctx, 2, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(121), resolved, "prefer the follow-up message, never both")
	})

	t.Run("missing link", func(t *testing.T) {
		_, err := repo.DeleteResolving(ctx, 2, 999)
		assert.ErrorIs(t, err, ticket.ErrMessageLinkNotFound)
	})
}
